package state

import (
	"context"
	"sync"

	"github.com/and161185/agora/internal/model"
)

// LikeAPI is the like subset Likes needs.
type LikeAPI interface {
	Toggle(ctx context.Context, postID int64) (model.LikeStatus, error)
	Status(ctx context.Context, postID int64) (model.LikeStatus, error)
}

// Likes caches the viewer's like flag and the count per post.
type Likes struct {
	api LikeAPI

	mu    sync.Mutex
	posts map[int64]model.LikeStatus
}

func NewLikes(api LikeAPI) *Likes {
	return &Likes{api: api, posts: map[int64]model.LikeStatus{}}
}

// Get returns the cached status, if loaded.
func (l *Likes) Get(postID int64) (model.LikeStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.posts[postID]
	return st, ok
}

// Load fetches the status from the server and caches it.
func (l *Likes) Load(ctx context.Context, postID int64) (model.LikeStatus, error) {
	st, err := l.api.Status(ctx, postID)
	if err != nil {
		return model.LikeStatus{}, err
	}
	return l.put(postID, st), nil
}

// Toggle flips the like on the server and stores whatever it answered.
// Nothing changes locally on failure.
func (l *Likes) Toggle(ctx context.Context, postID int64) (model.LikeStatus, error) {
	st, err := l.api.Toggle(ctx, postID)
	if err != nil {
		return model.LikeStatus{}, err
	}
	return l.put(postID, st), nil
}

func (l *Likes) put(postID int64, st model.LikeStatus) model.LikeStatus {
	st.PostID = postID
	st.Message = ""
	l.mu.Lock()
	l.posts[postID] = st
	l.mu.Unlock()
	return st
}
