package models

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Root is the role-scoped path prefix, e.g. "/teacher".
func (r Role) Root() string {
	return "/" + string(r)
}

type Profile struct {
	ID        string
	FirstName *string
	LastName  *string
	Email     *string
	Role      Role
	AvatarURL *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
