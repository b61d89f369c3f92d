package model

// Roles carried in the access token's "role" claim.
const (
    RoleMentee = "MENTEE"
    RoleMentor = "MENTOR"
    RoleAdmin  = "ADMIN"
)

// ValidRole reports whether r is one of the roles a user may register with.
// ADMIN accounts are provisioned directly in the database.
func ValidRole(r string) bool {
    return r == RoleMentee || r == RoleMentor
}
