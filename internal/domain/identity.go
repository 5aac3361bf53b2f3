package domain

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Identity is an already authenticated caller. The core trusts it and only
// performs the ownership and role checks it states.
type Identity struct {
	ID   string
	Role Role
}

func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }

func (i Identity) IsStudent() bool { return i.Role == RoleStudent }
