// Package domain holds the audit log entry type.
package domain

import "time"

// AuditLog is one persisted audit event for the auth subsystem.
type AuditLog struct {
	ID          string
	PrincipalID string
	Role        string
	Action      string // e.g. "login", "login_failure", "refresh", "logout", "account_activated"
	Resource    string
	IP          string
	Metadata    string // free-form JSON or empty
	CreatedAt   time.Time
}
