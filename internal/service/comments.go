package service

import (
	"context"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/model"
)

// CommentService covers comments on posts.
type CommentService interface {
	Create(ctx context.Context, postID int64, content string) (model.Comment, error)
	ListByPost(ctx context.Context, postID int64, p model.Page) (model.CommentList, error)
	Get(ctx context.Context, id int64) (model.Comment, error)
	Delete(ctx context.Context, id int64) error
}

type CommentServiceImpl struct {
	api *apiclient.Client
}

var _ CommentService = (*CommentServiceImpl)(nil)

func NewCommentService(api *apiclient.Client) *CommentServiceImpl {
	return &CommentServiceImpl{api: api}
}

func (s *CommentServiceImpl) Create(ctx context.Context, postID int64, content string) (model.Comment, error) {
	if err := requireID("post_id", postID); err != nil {
		return model.Comment{}, err
	}
	content, err := requireText("content", content, MaxComment)
	if err != nil {
		return model.Comment{}, err
	}
	var out model.Comment
	err = s.api.Post(ctx, "/comments/", model.NewComment{PostID: postID, Content: content}, &out)
	return out, err
}

func (s *CommentServiceImpl) ListByPost(ctx context.Context, postID int64, p model.Page) (model.CommentList, error) {
	if err := requireID("post_id", postID); err != nil {
		return model.CommentList{}, err
	}
	var out model.CommentList
	err := s.api.Get(ctx, idPath("/comments/post/", postID), pageQuery(p, 20, false), &out)
	return out, err
}

func (s *CommentServiceImpl) Get(ctx context.Context, id int64) (model.Comment, error) {
	if err := requireID("comment_id", id); err != nil {
		return model.Comment{}, err
	}
	var out model.Comment
	err := s.api.Get(ctx, idPath("/comments/", id), nil, &out)
	return out, err
}

func (s *CommentServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := requireID("comment_id", id); err != nil {
		return err
	}
	return s.api.Delete(ctx, idPath("/comments/", id), nil)
}
