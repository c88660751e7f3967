// Package domain contains entity without logic, just meta-data.
package domain

type (
	SessionID string
	UserID    string
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type SessionStatus string

const (
	StatusWaiting SessionStatus = "waiting"
	StatusLive    SessionStatus = "live"
	StatusEnded   SessionStatus = "ended"
)

// Joinable reports whether new peers may still enter the session.
func (s SessionStatus) Joinable() bool {
	return s == StatusWaiting || s == StatusLive
}

// SessionInfo is the durable session fact held by the session store.
// The signaling core reads it for admission and teacher checks; it never
// creates or ends sessions itself.
type SessionInfo struct {
	ID        SessionID     `json:"id"`
	TeacherID UserID        `json:"teacherId"`
	Status    SessionStatus `json:"status"`
}
