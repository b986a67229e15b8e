package service

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
	"github.com/and161185/agora/internal/testutil/fakeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestCommunities_CRUD(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "owner@example.com")
	ctx := context.Background()

	c, err := owner.comm.Create(ctx, "  Gophers  ", strptr("   "))
	require.NoError(t, err)
	assert.Equal(t, "Gophers", c.Name)
	assert.Nil(t, c.Description, "blank description is sent as null")
	require.NotNil(t, c.CreatedBy)
	assert.Equal(t, owner.id, *c.CreatedBy)

	d, err := owner.comm.Details(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, d.IsOwner)
	assert.True(t, d.IsMember)
	assert.Equal(t, 1, d.MemberCount)

	c, err = owner.comm.Update(ctx, c.ID, "Gophers United", strptr("all things Go"))
	require.NoError(t, err)
	assert.Equal(t, "Gophers United", c.Name)
	require.NotNil(t, c.Description)
	assert.Equal(t, "all things Go", *c.Description)

	list, err := owner.comm.List(ctx, model.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, owner.comm.Delete(ctx, c.ID))
	_, err = owner.comm.Get(ctx, c.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, "Community not found", err.Error())
}

func TestCommunities_Validation(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	a := loggedIn(t, srv, "v@example.com")
	ctx := context.Background()
	before := srv.TotalHits()

	_, err := a.comm.Create(ctx, "   ", nil)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = a.comm.Create(ctx, strings.Repeat("x", MaxCommunityName+1), nil)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = a.comm.Get(ctx, 0)
	require.ErrorIs(t, err, errs.ErrValidation)

	assert.Equal(t, before, srv.TotalHits(), "validation short-circuits before the network")

	_, err = a.comm.Create(ctx, strings.Repeat("x", MaxCommunityName), nil)
	require.NoError(t, err)
}

func TestCommunities_DetailsAnonymous(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "o@example.com")
	id := community(t, owner, "Open")

	anon := newActor(t, srv)
	d, err := anon.comm.Details(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, d.IsMember)
	assert.False(t, d.IsOwner)
}

func TestMemberships_JoinLeaveAndRoster(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "own@example.com")
	bob := loggedIn(t, srv, "bob@example.com")
	ctx := context.Background()
	id := community(t, owner, "Club")

	st, err := bob.mem.Status(ctx, id)
	require.NoError(t, err)
	assert.False(t, st.IsMember)

	jr, err := bob.mem.Join(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, jr.Membership.Role)

	_, err = bob.mem.Join(ctx, id)
	require.Error(t, err)
	assert.Equal(t, "You are already a member of this community", errs.Detail(err))

	roster, err := bob.mem.Members(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, roster.TotalCount)
	assert.True(t, roster.Members[0].IsOwner)
	assert.Equal(t, model.RoleOwner, roster.Members[0].EffectiveRole())
	assert.Equal(t, bob.id, roster.Members[1].UserID)

	mine, err := bob.mem.MyCommunities(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)

	lr, err := bob.mem.Leave(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, lr.CommunityID)

	_, err = owner.mem.Leave(ctx, id)
	require.Error(t, err)
	assert.Equal(t, "Community owners cannot leave their own community", errs.Detail(err))
}

func TestMemberships_UpdateRole(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "own@example.com")
	adm := loggedIn(t, srv, "adm@example.com")
	bob := loggedIn(t, srv, "bob@example.com")
	ctx := context.Background()
	id := community(t, owner, "Club", adm, bob)

	ru, err := owner.mem.UpdateRole(ctx, id, adm.id, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, ru.Membership.Role)

	_, err = adm.mem.UpdateRole(ctx, id, bob.id, model.RoleModerator)
	require.NoError(t, err)

	_, err = bob.mem.UpdateRole(ctx, id, adm.id, model.RoleMember)
	require.Error(t, err)
	assert.Equal(t, "You must be an owner or admin to change member roles", errs.Detail(err))

	before := srv.TotalHits()
	_, err = owner.mem.UpdateRole(ctx, id, bob.id, model.RoleOwner)
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, before, srv.TotalHits())
}

func TestPosts_CreateWithoutMediaRoundTrips(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "p@example.com")
	ctx := context.Background()
	id := community(t, owner, "Posts")

	p, err := owner.posts.Create(ctx, id, "hello world", "", "video")
	require.NoError(t, err)
	assert.Nil(t, p.MediaURL)
	assert.Nil(t, p.MediaType, "type is dropped without a url")

	got, err := owner.posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Content)
	assert.Nil(t, got.MediaURL)
	assert.Nil(t, got.MediaType)
	assert.True(t, got.IsAuthor)
}

func TestPosts_MediaDefaultsAndPaging(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "p@example.com")
	ctx := context.Background()
	id := community(t, owner, "Posts")

	p, err := owner.posts.Create(ctx, id, "pic", " https://img.example.com/a.png ", "")
	require.NoError(t, err)
	require.NotNil(t, p.MediaURL)
	assert.Equal(t, "https://img.example.com/a.png", *p.MediaURL)
	require.NotNil(t, p.MediaType)
	assert.Equal(t, DefaultMediaType, *p.MediaType)

	for i := 0; i < 4; i++ {
		_, err := owner.posts.Create(ctx, id, "post", "", "")
		require.NoError(t, err)
	}
	page, err := owner.posts.ListByCommunity(ctx, id, model.Page{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)
	assert.Equal(t, 5, page.TotalCount)
	assert.True(t, page.HasMore)

	page, err = owner.posts.ListByCommunity(ctx, id, model.Page{})
	require.NoError(t, err)
	assert.Equal(t, 20, page.PageSize)
	assert.False(t, page.HasMore)
	assert.Greater(t, page.Posts[0].ID, page.Posts[4].ID, "newest first")
}

func TestPosts_EditAndDeleteRules(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "o@example.com")
	bob := loggedIn(t, srv, "b@example.com")
	ctx := context.Background()
	id := community(t, owner, "Posts", bob)

	p, err := bob.posts.Create(ctx, id, "mine", "", "")
	require.NoError(t, err)

	upd, err := bob.posts.Update(ctx, p.ID, model.PostUpdate{Content: strptr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", upd.Content)
	assert.NotNil(t, upd.UpdatedAt)

	_, err = owner.posts.Update(ctx, p.ID, model.PostUpdate{Content: strptr("hijack")})
	require.Error(t, err)

	_, err = bob.posts.Update(ctx, p.ID, model.PostUpdate{Content: strptr(" ")})
	require.ErrorIs(t, err, errs.ErrValidation)

	require.Error(t, owner.posts.Delete(ctx, p.ID))
	require.NoError(t, bob.posts.Delete(ctx, p.ID))
	_, err = bob.posts.Get(ctx, p.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPosts_UpdateClearsMedia(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "m@example.com")
	ctx := context.Background()
	id := community(t, owner, "Media")

	p, err := owner.posts.Create(ctx, id, "pic", "https://img.example.com/a.png", "image")
	require.NoError(t, err)
	require.NotNil(t, p.MediaURL)

	// Content-only edits leave the attachment alone.
	upd, err := owner.posts.Update(ctx, p.ID, model.PostUpdate{Content: strptr("caption")})
	require.NoError(t, err)
	require.NotNil(t, upd.MediaURL)
	assert.Equal(t, "https://img.example.com/a.png", *upd.MediaURL)

	upd, err = owner.posts.Update(ctx, p.ID, model.PostUpdate{MediaURL: strptr("  "), MediaType: strptr("video")})
	require.NoError(t, err)
	assert.Equal(t, "caption", upd.Content)
	assert.Nil(t, upd.MediaURL)
	assert.Nil(t, upd.MediaType)

	got, err := owner.posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MediaURL)
	assert.Nil(t, got.MediaType)
}

func TestPosts_NonMemberRejected(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "o@example.com")
	eve := loggedIn(t, srv, "e@example.com")
	id := community(t, owner, "Closed")

	_, err := eve.posts.ListByCommunity(context.Background(), id, model.Page{})
	require.Error(t, err)
	assert.Equal(t, "You must be a member of this community to view posts", errs.Detail(err))
}

func TestComments_Lifecycle(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "o@example.com")
	bob := loggedIn(t, srv, "b@example.com")
	ctx := context.Background()
	id := community(t, owner, "C", bob)

	p, err := owner.posts.Create(ctx, id, "post", "", "")
	require.NoError(t, err)

	c, err := bob.cmts.Create(ctx, p.ID, "  nice  ")
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)
	assert.True(t, c.IsAuthor)

	_, err = bob.cmts.Create(ctx, p.ID, strings.Repeat("y", MaxComment+1))
	require.ErrorIs(t, err, errs.ErrValidation)

	list, err := owner.cmts.ListByPost(ctx, p.ID, model.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalCount)
	assert.False(t, list.Comments[0].IsAuthor)

	got, err := owner.cmts.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	require.Error(t, owner.cmts.Delete(ctx, c.ID))
	require.NoError(t, bob.cmts.Delete(ctx, c.ID))
	_, err = bob.cmts.Get(ctx, c.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLikes_ToggleTwiceRestoresState(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "o@example.com")
	bob := loggedIn(t, srv, "b@example.com")
	ctx := context.Background()
	id := community(t, owner, "L", bob)

	p, err := owner.posts.Create(ctx, id, "like me", "", "")
	require.NoError(t, err)
	_, err = owner.likes.Toggle(ctx, p.ID)
	require.NoError(t, err)

	start, err := bob.likes.Status(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, start.IsLiked)
	assert.Equal(t, 1, start.LikeCount)

	first, err := bob.likes.Toggle(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, first.IsLiked)
	assert.Equal(t, 2, first.LikeCount)

	second, err := bob.likes.Toggle(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, start.IsLiked, second.IsLiked)
	assert.Equal(t, start.LikeCount, second.LikeCount)
}

func TestChat_RoomsAndMessages(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	owner := loggedIn(t, srv, "o@example.com")
	bob := loggedIn(t, srv, "b@example.com")
	ctx := context.Background()
	id := community(t, owner, "Chat", bob)

	rooms, err := bob.chat.ListRooms(ctx, id)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "General", rooms[0].Title)

	room, err := owner.chat.CreateRoom(ctx, id, " random ")
	require.NoError(t, err)
	assert.Equal(t, "random", room.Title)

	_, err = owner.chat.CreateRoom(ctx, id, strings.Repeat("t", MaxRoomTitle+1))
	require.ErrorIs(t, err, errs.ErrValidation)

	m1, err := bob.chat.Send(ctx, room.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, model.MessageText, m1.Type)
	assert.True(t, m1.IsSender)

	m2, err := owner.chat.SendImage(ctx, room.ID, "https://img.example.com/cat.png")
	require.NoError(t, err)
	assert.Equal(t, model.MessageImage, m2.Type)

	_, err = owner.chat.SendImage(ctx, room.ID, "not a url")
	require.ErrorIs(t, err, errs.ErrValidation)

	list, err := bob.chat.ListMessages(ctx, room.ID, model.Page{})
	require.NoError(t, err)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, m1.ID, list.Messages[0].ID, "oldest first")
	assert.True(t, list.Messages[0].IsSender)
	assert.False(t, list.Messages[1].IsSender)

	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/chat/messages/"+itoa(room.ID)))
}

func TestChat_ListMessagesAlwaysSendsPaging(t *testing.T) {
	t.Parallel()
	q := pageQuery(model.Page{}, 50, true)
	assert.Equal(t, "limit=50&skip=0", q.Encode())

	q = pageQuery(model.Page{}, 100, false)
	assert.Empty(t, q.Encode())

	q = pageQuery(model.Page{Skip: 40, Limit: 20}, 100, false)
	assert.Equal(t, "limit=20&skip=40", q.Encode())
}

func TestUsers_Profile(t *testing.T) {
	t.Parallel()
	srv := fakeapi.New(t)
	a := loggedIn(t, srv, "p@example.com")
	ctx := context.Background()

	p, err := a.users.UpdateProfile(ctx, strptr("  Pat "), strptr(""))
	require.NoError(t, err)
	require.NotNil(t, p.DisplayName)
	assert.Equal(t, "Pat", *p.DisplayName)
	assert.Nil(t, p.Bio)

	p, err = a.users.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p@example.com", p.Email)
	assert.Equal(t, a.id, p.UserID)
}

func itoa(n int64) string { return idPath("", n) }
