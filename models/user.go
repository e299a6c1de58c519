package models

import "time"

// Role is a back-office user's access level
type Role string

const (
	RoleViewer      Role = "viewer"
	RoleLoanOfficer Role = "loan_officer"
	RoleManager     Role = "manager"
	RoleAdmin       Role = "admin"
)

// Level returns the role's position in the hierarchy. Unknown roles rank
// below viewer so they never satisfy a requirement.
func (r Role) Level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleLoanOfficer:
		return 2
	case RoleManager:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

// Allows reports whether a holder of this role may perform an action
// requiring the given role
func (r Role) Allows(required Role) bool {
	return r.Level() >= required.Level()
}

// User is a back-office operator (loan officer, manager, admin)
type User struct {
	ID           int64      `db:"id"`
	Email        string     `db:"email"`
	FullName     string     `db:"full_name"`
	PasswordHash string     `db:"password_hash"`
	Role         Role       `db:"role"`
	IsActive     bool       `db:"is_active"`
	CreatedAt    time.Time  `db:"created_at"`
	LastLogin    *time.Time `db:"last_login"`
}
