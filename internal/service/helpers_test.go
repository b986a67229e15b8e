package service

import (
	"context"
	"testing"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/session"
	"github.com/and161185/agora/internal/testutil/fakeapi"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// actor is one logged-in client against the fake backend.
type actor struct {
	id    uuid.UUID
	sess  *session.Session
	api   *apiclient.Client
	auth  *AuthServiceImpl
	comm  *CommunityServiceImpl
	mem   *MembershipServiceImpl
	posts *PostServiceImpl
	cmts  *CommentServiceImpl
	likes *LikeServiceImpl
	chat  *ChatServiceImpl
	users *UserServiceImpl
}

func newActor(t *testing.T, srv *fakeapi.Server) *actor {
	t.Helper()
	log := zaptest.NewLogger(t)

	sess, err := session.Open(&session.MemoryStore{})
	require.NoError(t, err)
	api, err := apiclient.New(srv.URL, sess, apiclient.WithLogger(log))
	require.NoError(t, err)

	return &actor{
		sess:  sess,
		api:   api,
		auth:  NewAuthService(api, sess, log),
		comm:  NewCommunityService(api),
		mem:   NewMembershipService(api),
		posts: NewPostService(api, 0),
		cmts:  NewCommentService(api),
		likes: NewLikeService(api),
		chat:  NewChatService(api, 0),
		users: NewUserService(api),
	}
}

// loggedIn registers email on the fake backend and logs the actor in.
func loggedIn(t *testing.T, srv *fakeapi.Server, email string) *actor {
	t.Helper()
	a := newActor(t, srv)
	srv.Register(email, "secret", "")
	s, err := a.auth.Login(context.Background(), email, "secret")
	require.NoError(t, err)
	a.id = s.User.ID
	return a
}

// community creates a community owned by owner and has each of members join.
func community(t *testing.T, owner *actor, name string, members ...*actor) int64 {
	t.Helper()
	ctx := context.Background()
	c, err := owner.comm.Create(ctx, name, nil)
	require.NoError(t, err)
	for _, m := range members {
		_, err := m.mem.Join(ctx, c.ID)
		require.NoError(t, err)
	}
	return c.ID
}
