package domain

import "time"

// Actions recorded by the session manager.
const (
	ActionRegister        = "register"
	ActionLoginSuccess    = "login_success"
	ActionLoginFailure    = "login_failure"
	ActionRefresh         = "refresh"
	ActionRefreshRejected = "refresh_rejected"
	ActionLogout          = "logout"
)

// ResourceSession is the resource recorded for session lifecycle events.
const ResourceSession = "session"

// AuditLog represents an audit event. UserEmail is empty when no subject is known.
type AuditLog struct {
	ID        string
	UserEmail string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
