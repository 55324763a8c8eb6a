// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package access computes read/write capability for a farm-scoped principal.
//
// Stored farm documents carry three generations of permission data at once: a
// collaborator list, a flat member id list and a permission map. All three
// stay honored, a principal has a capability when any representation grants
// it. Do not "clean up" the old shapes, existing documents still use them.
package access

// Role describes the capability level granted to a principal on a farm
type Role string

const (
	// RoleViewer grants read-only access
	RoleViewer Role = "viewer"
	// RoleEditor grants read and write access
	RoleEditor Role = "editor"
	// RoleAdministrator grants read and write access plus farm administration
	RoleAdministrator Role = "administrator"
)

// Valid reports whether role is one of the known roles
func (role Role) Valid() bool {
	switch role {
	case RoleViewer, RoleEditor, RoleAdministrator:
		return true
	}
	return false
}

// CanWrite returns whether the role grants mutations
func (role Role) CanWrite() bool {
	return role == RoleEditor || role == RoleAdministrator
}

// rank orders roles for normalization, unknown role strings rank lowest
var rank = map[Role]int{
	RoleViewer:        1,
	RoleEditor:        2,
	RoleAdministrator: 3,
}

// Collaborator pairs a user with the role granted to them
type Collaborator struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// Grants carries every permission representation stored on a farm document
type Grants struct {
	Owner         string
	Collaborators []Collaborator
	Members       []string
	Permissions   map[string]Role
}

// Access is the resolved capability pair for one principal
type Access struct {
	Read  bool
	Write bool
}

// Resolve returns the access principalID has under grants, the logical OR
// over all representations. The owner always has full access, unlisted
// principals have none.
func Resolve(grants Grants, principalID string) Access {
	if principalID == "" {
		return Access{}
	}
	if principalID == grants.Owner {
		return Access{Read: true, Write: true}
	}

	var access Access
	for _, collaborator := range grants.Collaborators {
		if collaborator.UserID == principalID {
			access.Read = true
			if collaborator.Role.CanWrite() {
				access.Write = true
			}
		}
	}
	for _, member := range grants.Members {
		if member == principalID {
			access.Read = true
		}
	}
	if role, ok := grants.Permissions[principalID]; ok {
		access.Read = true
		if role.CanWrite() {
			access.Write = true
		}
	}
	return access
}

// EffectiveRole normalizes whatever representation grants access into a
// single role for principalID. The second return is false when the principal
// has no access at all.
func EffectiveRole(grants Grants, principalID string) (Role, bool) {
	if principalID == "" {
		return "", false
	}
	if principalID == grants.Owner {
		return RoleAdministrator, true
	}

	best := 0
	listed := false
	for _, collaborator := range grants.Collaborators {
		if collaborator.UserID == principalID {
			listed = true
			if rank[collaborator.Role] > best {
				best = rank[collaborator.Role]
			}
		}
	}
	for _, member := range grants.Members {
		if member == principalID {
			listed = true
			if rank[RoleViewer] > best {
				best = rank[RoleViewer]
			}
		}
	}
	if role, ok := grants.Permissions[principalID]; ok {
		listed = true
		if rank[role] > best {
			best = rank[role]
		}
	}

	if !listed {
		return "", false
	}
	switch best {
	case rank[RoleAdministrator]:
		return RoleAdministrator, true
	case rank[RoleEditor]:
		return RoleEditor, true
	default:
		return RoleViewer, true
	}
}
