// Package access decides who may see and download content.
package access

import (
	"fmt"

	"github.com/google/uuid"
)

// Viewer is the already-authenticated identity asking for content.
// The zero value is an anonymous visitor.
type Viewer struct {
	ID            uuid.UUID
	Authenticated bool
	IsSuperuser   bool
	IsUploader    bool
}

// Anonymous returns a viewer with no identity.
func Anonymous() Viewer {
	return Viewer{}
}

// IsAdmin reports whether the viewer is an authenticated superuser.
func (v Viewer) IsAdmin() bool {
	return v.Authenticated && v.IsSuperuser
}

// Owns reports whether the viewer is the given owner.
func (v Viewer) Owns(ownerID uuid.UUID) bool {
	return v.Authenticated && v.ID != uuid.Nil && v.ID == ownerID
}

// Privileged reports whether the viewer bypasses privacy flags for content
// owned by ownerID.
func (v Viewer) Privileged(ownerID uuid.UUID) bool {
	return v.IsAdmin() || v.Owns(ownerID)
}

// Content is the privacy-relevant projection of a media item, a folder
// or a profile.
type Content struct {
	OwnerID      uuid.UUID
	OwnerPrivate bool
	IsPrivate    bool
	IsHidden     bool
}

// Profile projects an account's profile as content it owns.
func Profile(ownerID uuid.UUID, ownerPrivate bool) Content {
	return Content{OwnerID: ownerID, OwnerPrivate: ownerPrivate}
}

// CanView resolves visibility. followAccepted reports whether an accepted
// follow edge exists from the viewer to the content owner.
//
// Precedence: hidden content is denied to everyone but the owner and
// admins; owner and admins are always allowed; public content of public
// owners is allowed; an accepted follow allows the rest.
func CanView(v Viewer, c Content, followAccepted bool) bool {
	privileged := v.Privileged(c.OwnerID)
	if c.IsHidden && !privileged {
		return false
	}
	if privileged {
		return true
	}
	if !c.IsPrivate && !c.OwnerPrivate {
		return true
	}
	return v.Authenticated && followAccepted
}

// Predicate is the set-oriented form of CanView, rendered as a SQL boolean
// expression for listing queries.
//
// ContentAlias must expose owner_id, is_private and is_hidden; OwnerAlias
// is the accounts row joined on owner_id and must expose is_private.
type Predicate struct {
	Viewer       Viewer
	ContentAlias string
	OwnerAlias   string
}

// SQL appends the predicate's arguments to args and returns the
// expression together with the extended argument list. Placeholders are
// numbered after the arguments already present.
func (p Predicate) SQL(args []any) (string, []any) {
	c, o := p.ContentAlias, p.OwnerAlias
	if p.Viewer.IsAdmin() {
		return "TRUE", args
	}

	public := fmt.Sprintf("(NOT %[1]s.is_private AND NOT %[2]s.is_private)", c, o)
	if !p.Viewer.Authenticated {
		return fmt.Sprintf("(NOT %s.is_hidden AND %s)", c, public), args
	}

	args = append(args, p.Viewer.ID)
	n := len(args)
	return fmt.Sprintf(
		"(%[1]s.owner_id = $%[2]d OR (NOT %[1]s.is_hidden AND (%[3]s OR EXISTS ("+
			"SELECT 1 FROM follows vf WHERE vf.follower_id = $%[2]d "+
			"AND vf.followed_id = %[1]s.owner_id AND vf.accepted))))",
		c, n, public,
	), args
}
