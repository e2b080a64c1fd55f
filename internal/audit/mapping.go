package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP request.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for an HTTP method and chi route pattern
// (e.g. GET /user/{email}/profile -> get profile).
// Resource is the last static path segment; action follows the method.
func ParseRoute(method, pattern string) ActionResource {
	resource := "unknown"
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		s := segments[i]
		if s == "" || strings.HasPrefix(s, "{") || s == "*" {
			continue
		}
		resource = strings.ToLower(s)
		break
	}
	return ActionResource{Action: methodToAction(method), Resource: resource}
}

func methodToAction(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return "get"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
