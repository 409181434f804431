package domain

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Actor is the pre-resolved identity and role context supplied by the auth
// collaborator. The core takes it for audit logging; role policy is applied
// by the transport layer before a command reaches the engine.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (a Actor) CanEditCatalog() bool {
	return a.Role == RoleAdmin
}
