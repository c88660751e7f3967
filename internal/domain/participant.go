package domain

// Identity is the display identity of a user, fetched from the session
// store once at join time.
type Identity struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Participant is the externally visible presence of a user in a session:
// identity, role and what they currently share. It exists exactly as long
// as a live connection for the same (session, user) pair exists.
type Participant struct {
	ID       UserID     `json:"id"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
	Role     Role       `json:"role"`
	Media    MediaState `json:"mediaState"`
}

func (p Participant) IsTeacher() bool { return p.Role == RoleTeacher }
