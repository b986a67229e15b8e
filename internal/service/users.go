package service

import (
	"context"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/model"
)

// UserService reads and edits the viewer's own profile.
type UserService interface {
	Profile(ctx context.Context) (model.Profile, error)
	// UpdateProfile replaces both fields; empty strings clear them.
	UpdateProfile(ctx context.Context, displayName, bio *string) (model.Profile, error)
}

type UserServiceImpl struct {
	api *apiclient.Client
}

var _ UserService = (*UserServiceImpl)(nil)

func NewUserService(api *apiclient.Client) *UserServiceImpl {
	return &UserServiceImpl{api: api}
}

func (s *UserServiceImpl) Profile(ctx context.Context) (model.Profile, error) {
	var out model.Profile
	err := s.api.Get(ctx, "/users/profile", nil, &out)
	return out, err
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, displayName, bio *string) (model.Profile, error) {
	in := model.ProfileUpdate{DisplayName: optionalText(displayName), Bio: optionalText(bio)}
	var out model.Profile
	err := s.api.Put(ctx, "/users/profile", in, &out)
	return out, err
}
