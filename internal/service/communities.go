package service

import (
	"context"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/model"
)

// CommunityService covers the community resource.
type CommunityService interface {
	List(ctx context.Context, p model.Page) ([]model.Community, error)
	Create(ctx context.Context, name string, description *string) (model.Community, error)
	Get(ctx context.Context, id int64) (model.Community, error)
	// Details adds member count and the viewer's is_member/is_owner flags.
	Details(ctx context.Context, id int64) (model.CommunityDetails, error)
	Update(ctx context.Context, id int64, name string, description *string) (model.Community, error)
	Delete(ctx context.Context, id int64) error
}

type CommunityServiceImpl struct {
	api *apiclient.Client
}

var _ CommunityService = (*CommunityServiceImpl)(nil)

func NewCommunityService(api *apiclient.Client) *CommunityServiceImpl {
	return &CommunityServiceImpl{api: api}
}

func communityInput(name string, description *string) (model.CommunityInput, error) {
	name, err := requireText("name", name, MaxCommunityName)
	if err != nil {
		return model.CommunityInput{}, err
	}
	return model.CommunityInput{Name: name, Description: optionalText(description)}, nil
}

func (s *CommunityServiceImpl) List(ctx context.Context, p model.Page) ([]model.Community, error) {
	var out []model.Community
	if err := s.api.Get(ctx, "/communities/", pageQuery(p, 100, false), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CommunityServiceImpl) Create(ctx context.Context, name string, description *string) (model.Community, error) {
	in, err := communityInput(name, description)
	if err != nil {
		return model.Community{}, err
	}
	var out model.Community
	err = s.api.Post(ctx, "/communities/", in, &out)
	return out, err
}

func (s *CommunityServiceImpl) Get(ctx context.Context, id int64) (model.Community, error) {
	if err := requireID("community_id", id); err != nil {
		return model.Community{}, err
	}
	var out model.Community
	err := s.api.Get(ctx, idPath("/communities/", id), nil, &out)
	return out, err
}

func (s *CommunityServiceImpl) Details(ctx context.Context, id int64) (model.CommunityDetails, error) {
	if err := requireID("community_id", id); err != nil {
		return model.CommunityDetails{}, err
	}
	var out model.CommunityDetails
	err := s.api.Get(ctx, idPath("/communities/", id)+"/details", nil, &out)
	return out, err
}

func (s *CommunityServiceImpl) Update(ctx context.Context, id int64, name string, description *string) (model.Community, error) {
	if err := requireID("community_id", id); err != nil {
		return model.Community{}, err
	}
	in, err := communityInput(name, description)
	if err != nil {
		return model.Community{}, err
	}
	var out model.Community
	err = s.api.Put(ctx, idPath("/communities/", id), in, &out)
	return out, err
}

func (s *CommunityServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := requireID("community_id", id); err != nil {
		return err
	}
	return s.api.Delete(ctx, idPath("/communities/", id), nil)
}
