package service

import (
	"context"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/model"
)

// LikeService flips and reads the viewer's like on a post.
type LikeService interface {
	Toggle(ctx context.Context, postID int64) (model.LikeStatus, error)
	Status(ctx context.Context, postID int64) (model.LikeStatus, error)
}

type LikeServiceImpl struct {
	api *apiclient.Client
}

var _ LikeService = (*LikeServiceImpl)(nil)

func NewLikeService(api *apiclient.Client) *LikeServiceImpl {
	return &LikeServiceImpl{api: api}
}

func (s *LikeServiceImpl) Toggle(ctx context.Context, postID int64) (model.LikeStatus, error) {
	if err := requireID("post_id", postID); err != nil {
		return model.LikeStatus{}, err
	}
	var out model.LikeStatus
	err := s.api.Post(ctx, idPath("/likes/toggle/", postID), nil, &out)
	return out, err
}

func (s *LikeServiceImpl) Status(ctx context.Context, postID int64) (model.LikeStatus, error) {
	if err := requireID("post_id", postID); err != nil {
		return model.LikeStatus{}, err
	}
	var out model.LikeStatus
	err := s.api.Get(ctx, idPath("/likes/status/", postID), nil, &out)
	if err == nil && out.PostID == 0 {
		out.PostID = postID
	}
	return out, err
}
