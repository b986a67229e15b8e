package service

import (
	"context"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
	"github.com/gofrs/uuid/v5"
)

// MembershipService covers joining, leaving and role management.
type MembershipService interface {
	Join(ctx context.Context, communityID int64) (model.JoinResult, error)
	Leave(ctx context.Context, communityID int64) (model.LeaveResult, error)
	Status(ctx context.Context, communityID int64) (model.MembershipStatus, error)
	MyCommunities(ctx context.Context) ([]model.Community, error)
	Members(ctx context.Context, communityID int64) (model.MemberList, error)
	// UpdateRole sets a member's role. Owner is never assignable.
	UpdateRole(ctx context.Context, communityID int64, userID uuid.UUID, role model.Role) (model.RoleUpdate, error)
}

type MembershipServiceImpl struct {
	api *apiclient.Client
}

var _ MembershipService = (*MembershipServiceImpl)(nil)

func NewMembershipService(api *apiclient.Client) *MembershipServiceImpl {
	return &MembershipServiceImpl{api: api}
}

func (s *MembershipServiceImpl) Join(ctx context.Context, communityID int64) (model.JoinResult, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.JoinResult{}, err
	}
	var out model.JoinResult
	err := s.api.Post(ctx, idPath("/memberships/join/", communityID), nil, &out)
	return out, err
}

func (s *MembershipServiceImpl) Leave(ctx context.Context, communityID int64) (model.LeaveResult, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.LeaveResult{}, err
	}
	var out model.LeaveResult
	err := s.api.Delete(ctx, idPath("/memberships/leave/", communityID), &out)
	return out, err
}

func (s *MembershipServiceImpl) Status(ctx context.Context, communityID int64) (model.MembershipStatus, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.MembershipStatus{}, err
	}
	var out model.MembershipStatus
	err := s.api.Get(ctx, idPath("/memberships/status/", communityID), nil, &out)
	return out, err
}

func (s *MembershipServiceImpl) MyCommunities(ctx context.Context) ([]model.Community, error) {
	var out []model.Community
	if err := s.api.Get(ctx, "/memberships/my-communities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MembershipServiceImpl) Members(ctx context.Context, communityID int64) (model.MemberList, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.MemberList{}, err
	}
	var out model.MemberList
	err := s.api.Get(ctx, idPath("/memberships/community/", communityID)+"/members", nil, &out)
	return out, err
}

func (s *MembershipServiceImpl) UpdateRole(ctx context.Context, communityID int64, userID uuid.UUID, role model.Role) (model.RoleUpdate, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.RoleUpdate{}, err
	}
	if userID == uuid.Nil {
		return model.RoleUpdate{}, errs.Invalid("user_id", "is required")
	}
	if !role.Valid() {
		return model.RoleUpdate{}, errs.Invalid("new_role", "must be member, moderator or admin")
	}

	path := idPath("/memberships/community/", communityID) + "/members/" + userID.String() + "/role"
	body := struct {
		NewRole model.Role `json:"new_role"`
	}{NewRole: role}

	var out model.RoleUpdate
	err := s.api.Put(ctx, path, body, &out)
	return out, err
}
