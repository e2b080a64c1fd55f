package audit

import "testing"

func TestParseRoute(t *testing.T) {
	testCases := []struct {
		method, pattern     string
		wantAction, wantRes string
	}{
		{"GET", "/user/{email}/profile", "get", "profile"},
		{"PUT", "/user/{email}/profile", "update", "profile"},
		{"PATCH", "/user/{email}/profile", "update", "profile"},
		{"POST", "/user/login", "create", "login"},
		{"DELETE", "/user/{email}", "delete", "user"},
		{"HEAD", "/healthz", "get", "healthz"},
		{"OPTIONS", "/user/{email}/profile", "options", "profile"},
		{"GET", "", "get", "unknown"},
		{"GET", "/{id}/*", "get", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.pattern, func(t *testing.T) {
			ar := ParseRoute(tc.method, tc.pattern)
			if ar.Action != tc.wantAction {
				t.Errorf("action = %q, want %q", ar.Action, tc.wantAction)
			}
			if ar.Resource != tc.wantRes {
				t.Errorf("resource = %q, want %q", ar.Resource, tc.wantRes)
			}
		})
	}
}
