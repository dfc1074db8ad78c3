package application

// Role is the capability level of a caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal identifies the caller of every core operation. The core never
// authenticates; it only authorizes against this value.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether p carries the admin capability.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanAccess reports whether p may read or mutate r: owners always can,
// admins can reach any record.
func (p Principal) CanAccess(r *Record) bool {
	if p.UserID == "" || r == nil {
		return false
	}
	return r.OwnerID == p.UserID || p.IsAdmin()
}
