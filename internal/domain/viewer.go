package domain

import "github.com/google/uuid"

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleInstructor    Role = "instructor"
	RoleStudent       Role = "student"
)

// Viewer is the resolved caller of an operation.
type Viewer struct {
	ID   uuid.UUID
	Role Role
}

func (v Viewer) IsAdministrator() bool { return v.Role == RoleAdministrator }
func (v Viewer) IsInstructor() bool    { return v.Role == RoleInstructor }
func (v Viewer) IsStudent() bool       { return v.Role == RoleStudent }
