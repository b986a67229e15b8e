package service

import (
	"context"
	"strings"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/model"
)

// DefaultMediaType is assumed when a media URL comes without a type.
const DefaultMediaType = "image"

// PostService covers community posts.
type PostService interface {
	// Create publishes a post. Without mediaURL both media fields are null.
	Create(ctx context.Context, communityID int64, content, mediaURL, mediaType string) (model.Post, error)
	ListByCommunity(ctx context.Context, communityID int64, p model.Page) (model.PostList, error)
	Get(ctx context.Context, id int64) (model.Post, error)
	Update(ctx context.Context, id int64, upd model.PostUpdate) (model.Post, error)
	Delete(ctx context.Context, id int64) error
}

type PostServiceImpl struct {
	api      *apiclient.Client
	pageSize int
}

var _ PostService = (*PostServiceImpl)(nil)

// NewPostService constructs PostService; pageSize <= 0 means 20.
func NewPostService(api *apiclient.Client, pageSize int) *PostServiceImpl {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &PostServiceImpl{api: api, pageSize: pageSize}
}

// media normalizes the pair: no url means no type either.
func media(url, typ string) (*string, *string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, nil
	}
	typ = strings.TrimSpace(typ)
	if typ == "" {
		typ = DefaultMediaType
	}
	return &url, &typ
}

func (s *PostServiceImpl) Create(ctx context.Context, communityID int64, content, mediaURL, mediaType string) (model.Post, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.Post{}, err
	}
	content, err := requireText("content", content, MaxPostContent)
	if err != nil {
		return model.Post{}, err
	}
	in := model.NewPost{CommunityID: communityID, Content: content}
	in.MediaURL, in.MediaType = media(mediaURL, mediaType)

	var out model.Post
	err = s.api.Post(ctx, "/posts/", in, &out)
	return out, err
}

func (s *PostServiceImpl) ListByCommunity(ctx context.Context, communityID int64, p model.Page) (model.PostList, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.PostList{}, err
	}
	var out model.PostList
	err := s.api.Get(ctx, idPath("/posts/community/", communityID), pageQuery(p, s.pageSize, true), &out)
	return out, err
}

func (s *PostServiceImpl) Get(ctx context.Context, id int64) (model.Post, error) {
	if err := requireID("post_id", id); err != nil {
		return model.Post{}, err
	}
	var out model.Post
	err := s.api.Get(ctx, idPath("/posts/", id), nil, &out)
	return out, err
}

func (s *PostServiceImpl) Update(ctx context.Context, id int64, upd model.PostUpdate) (model.Post, error) {
	if err := requireID("post_id", id); err != nil {
		return model.Post{}, err
	}
	if upd.Content != nil {
		c, err := requireText("content", *upd.Content, MaxPostContent)
		if err != nil {
			return model.Post{}, err
		}
		upd.Content = &c
	}
	if upd.MediaURL != nil {
		upd.MediaURL, upd.MediaType = media(*upd.MediaURL, deref(upd.MediaType))
		// An empty url asks to remove the attachment.
		upd.ClearMedia = upd.ClearMedia || upd.MediaURL == nil
	}
	if upd.ClearMedia {
		upd.MediaURL, upd.MediaType = nil, nil
	}

	var out model.Post
	err := s.api.Put(ctx, idPath("/posts/", id), upd, &out)
	return out, err
}

func (s *PostServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := requireID("post_id", id); err != nil {
		return err
	}
	return s.api.Delete(ctx, idPath("/posts/", id), nil)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
