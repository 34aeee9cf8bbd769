package domain

type Role string

const (
	RoleViewer Role = "VIEWER"
	RoleEditor Role = "EDITOR"
	RoleOwner  Role = "OWNER"
)

// CanEdit reports whether the role grants document mutation rights.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleOwner
}

// CanGrant reports whether the role may grant roles to other participants.
func (r Role) CanGrant() bool {
	return r == RoleOwner
}

func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleOwner:
		return Role(role)
	default:
		return RoleViewer
	}
}
