// Package policy derives what the viewer may see and do inside a community.
// The results are display hints only; the backend re-checks every action.
//
// Rules:
//   - Owners and members see posts, chat and the member roster
//   - Owners and admins manage roles; the owner's own row is never editable
//   - Owners may assign member, moderator or admin; admins only member or moderator
//   - Owners never get a join/leave action
//   - Only the author edits or deletes a post, and only the author deletes a comment
package policy

import (
	"slices"

	"github.com/and161185/agora/internal/model"
	"github.com/gofrs/uuid/v5"
)

// Viewer is the current user as seen from one community.
type Viewer struct {
	UserID   uuid.UUID
	IsMember bool
	IsOwner  bool
	Role     model.Role
}

// ViewerFor builds a Viewer from server-computed details and the viewer's
// roster role (empty when unknown).
func ViewerFor(d model.CommunityDetails, userID uuid.UUID, role model.Role) Viewer {
	v := Viewer{UserID: userID, IsMember: d.IsMember, IsOwner: d.IsOwner, Role: role}
	if v.IsOwner {
		v.Role = model.RoleOwner
	}
	return v
}

// RoleIn finds userID's effective role in a roster.
func RoleIn(list model.MemberList, userID uuid.UUID) (model.Role, bool) {
	if userID == uuid.Nil {
		return "", false
	}
	for _, m := range list.Members {
		if m.UserID == userID {
			return m.EffectiveRole(), true
		}
	}
	return "", false
}

// CanSeeContent gates the posts, chat and members tabs.
func CanSeeContent(v Viewer) bool {
	return v.IsMember || v.IsOwner
}

// CanManageRoles reports whether role controls are shown at all.
func CanManageRoles(v Viewer) bool {
	return v.IsOwner || v.Role == model.RoleAdmin
}

// CanChangeRole reports whether actor may edit target's role.
func CanChangeRole(actor Viewer, target model.Member) bool {
	return CanManageRoles(actor) && !target.IsOwner && target.Role != model.RoleOwner
}

// AssignableRoles lists the roles actor may hand out.
func AssignableRoles(actor Viewer) []model.Role {
	switch {
	case actor.IsOwner:
		return []model.Role{model.RoleMember, model.RoleModerator, model.RoleAdmin}
	case actor.Role == model.RoleAdmin:
		return []model.Role{model.RoleMember, model.RoleModerator}
	}
	return nil
}

// CanAssignRole combines CanChangeRole with the actor's assignable set.
func CanAssignRole(actor Viewer, target model.Member, role model.Role) bool {
	return CanChangeRole(actor, target) && slices.Contains(AssignableRoles(actor), role)
}

// Action is the membership button offered to the viewer.
type Action string

const (
	ActionNone  Action = ""
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

// ShowJoinLeave is false for the owner.
func ShowJoinLeave(v Viewer) bool {
	return !v.IsOwner
}

func JoinLeaveAction(v Viewer) Action {
	switch {
	case !ShowJoinLeave(v):
		return ActionNone
	case v.IsMember:
		return ActionLeave
	}
	return ActionJoin
}

func CanEditPost(p model.Post) bool   { return p.IsAuthor }
func CanDeletePost(p model.Post) bool { return p.IsAuthor }

func CanDeleteComment(c model.Comment) bool { return c.IsAuthor }

// CanEditCommunity compares created_by with the identity decoded from the
// local token. Unknown identity never matches.
func CanEditCommunity(c model.Community, identity uuid.UUID, known bool) bool {
	return known && identity != uuid.Nil && c.CreatedBy != nil && *c.CreatedBy == identity
}

// Tab is a section of the community page.
type Tab string

const (
	TabAbout   Tab = "about"
	TabPosts   Tab = "posts"
	TabChat    Tab = "chat"
	TabMembers Tab = "members"
)

// Tabs lists the sections visible to v, in display order.
func Tabs(v Viewer) []Tab {
	if !CanSeeContent(v) {
		return []Tab{TabAbout}
	}
	return []Tab{TabAbout, TabPosts, TabChat, TabMembers}
}
