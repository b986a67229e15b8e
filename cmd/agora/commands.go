package main

import (
	"context"
	"fmt"

	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
	"github.com/and161185/agora/internal/nav"
	"github.com/and161185/agora/internal/policy"
	"github.com/and161185/agora/internal/state"
	"github.com/gofrs/uuid/v5"
	"golang.org/x/sync/errgroup"
)

func (a *app) cmdVersion(context.Context, []string) error {
	fmt.Fprintf(a.out, "agora %s (%s)\n", version, buildDate)
	return nil
}

// ---- auth ----

func (a *app) cmdSignup(ctx context.Context, args []string) error {
	fs := a.flags("signup")
	email := fs.String("email", "", "email")
	pass := fs.String("p", "", "password")
	name := fs.String("name", "", "username")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(*email != "" && *pass != "", "-email and -p"); err != nil {
		return err
	}

	resp, err := a.auth.Signup(ctx, *email, *pass, *name)
	if err != nil {
		return err
	}
	printJSON(a.out, resp)
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "email")
	pass := fs.String("p", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(*email != "" && *pass != "", "-email and -p"); err != nil {
		return err
	}

	s, err := a.auth.Login(ctx, *email, *pass)
	if err != nil {
		return err
	}
	out := map[string]any{"user_id": s.User.ID, "email": s.User.Email}
	if exp, ok := a.sess.ExpiresAt(); ok {
		out["expires_at"] = exp.UTC()
	}
	printJSON(a.out, out)
	return nil
}

func (a *app) cmdLogout(ctx context.Context, _ []string) error {
	// The local token is gone even when this fails.
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func (a *app) cmdWhoami(context.Context, []string) error {
	if !a.sess.IsAuthenticated() {
		return fmt.Errorf("%w: run `agora login` first", errs.ErrNoSession)
	}
	out := map[string]any{}
	if id, ok := a.sess.Identity(); ok {
		out["user_id"] = id
	}
	if exp, ok := a.sess.ExpiresAt(); ok {
		out["expires_at"] = exp.UTC()
	}
	printJSON(a.out, out)
	return nil
}

// ---- communities ----

func (a *app) cmdCommunities(ctx context.Context, args []string) error {
	fs := a.flags("communities")
	mine := fs.Bool("mine", false, "only communities I joined")
	page := pageFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guard(string(nav.Communities)); err != nil {
		return err
	}

	var (
		list []model.Community
		err  error
	)
	if *mine {
		list, err = a.mem.MyCommunities(ctx)
	} else {
		list, err = a.comm.List(ctx, *page)
	}
	if err != nil {
		return err
	}
	printJSON(a.out, list)
	return nil
}

// communityView is what `community show` prints.
type communityView struct {
	model.CommunityDetails
	Tabs    []policy.Tab     `json:"tabs"`
	Action  policy.Action    `json:"action,omitempty"`
	CanEdit bool             `json:"can_edit"`
	MyRole  model.Role       `json:"my_role,omitempty"`
	Posts   []model.Post     `json:"posts,omitempty"`
	Rooms   []model.ChatRoom `json:"rooms,omitempty"`
	Members []model.Member   `json:"members,omitempty"`
}

func (a *app) cmdCommunity(ctx context.Context, args []string) error {
	verb, rest, err := sub(args)
	if err != nil {
		return err
	}
	fs := a.flags("community " + verb)
	id := fs.Int64("id", 0, "community id")
	name := fs.String("name", "", "name")
	desc := fs.String("desc", "", "description")
	if err := parse(fs, rest); err != nil {
		return err
	}

	switch verb {
	case "show":
		if err := a.guardCommunity(*id); err != nil {
			return err
		}
		view, err := a.loadCommunity(ctx, *id)
		if err != nil {
			return err
		}
		printJSON(a.out, view)

	case "create":
		if err := a.guard(string(nav.Communities)); err != nil {
			return err
		}
		c, err := a.comm.Create(ctx, *name, optional(fs, "desc", *desc))
		if err != nil {
			return err
		}
		printJSON(a.out, c)

	case "edit":
		if err := a.guardCommunity(*id); err != nil {
			return err
		}
		if err := a.ownCommunity(ctx, *id); err != nil {
			return err
		}
		c, err := a.comm.Update(ctx, *id, *name, optional(fs, "desc", *desc))
		if err != nil {
			return err
		}
		printJSON(a.out, c)

	case "rm":
		if err := a.guardCommunity(*id); err != nil {
			return err
		}
		if err := a.ownCommunity(ctx, *id); err != nil {
			return err
		}
		if err := a.comm.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")

	default:
		return fmt.Errorf("%w: community %s", errUsage, verb)
	}
	return nil
}

// loadCommunity reads details first, then the member-only sections
// concurrently when the viewer may see them.
func (a *app) loadCommunity(ctx context.Context, id int64) (communityView, error) {
	d, err := a.comm.Details(ctx, id)
	if err != nil {
		return communityView{}, err
	}
	me, known := a.sess.Identity()

	view := communityView{CommunityDetails: d}
	v := policy.ViewerFor(d, me, "")
	if policy.CanSeeContent(v) {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			list, err := a.posts.ListByCommunity(gctx, id, model.Page{})
			view.Posts = list.Posts
			return err
		})
		g.Go(func() error {
			rooms, err := a.chat.ListRooms(gctx, id)
			view.Rooms = rooms
			return err
		})
		g.Go(func() error {
			list, err := a.mem.Members(gctx, id)
			view.Members = list.Members
			return err
		})
		if err := g.Wait(); err != nil {
			return communityView{}, err
		}
		if role, ok := policy.RoleIn(model.MemberList{Members: view.Members}, me); ok {
			v = policy.ViewerFor(d, me, role)
		}
	}

	view.Tabs = policy.Tabs(v)
	view.Action = policy.JoinLeaveAction(v)
	view.CanEdit = policy.CanEditCommunity(d.Community, me, known)
	view.MyRole = v.Role
	return view, nil
}

func (a *app) ownCommunity(ctx context.Context, id int64) error {
	c, err := a.comm.Get(ctx, id)
	if err != nil {
		return err
	}
	me, known := a.sess.Identity()
	if !policy.CanEditCommunity(c, me, known) {
		return fmt.Errorf("%w: only the creator can change this community", errs.ErrForbidden)
	}
	return nil
}

// ---- memberships ----

func (a *app) cmdJoin(ctx context.Context, args []string) error {
	return a.membership(ctx, "join", args, policy.ActionJoin)
}

func (a *app) cmdLeave(ctx context.Context, args []string) error {
	return a.membership(ctx, "leave", args, policy.ActionLeave)
}

func (a *app) membership(ctx context.Context, name string, args []string, want policy.Action) error {
	fs := a.flags(name)
	id := fs.Int64("id", 0, "community id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guardCommunity(*id); err != nil {
		return err
	}

	d, err := a.comm.Details(ctx, *id)
	if err != nil {
		return err
	}
	me, _ := a.sess.Identity()
	if got := policy.JoinLeaveAction(policy.ViewerFor(d, me, "")); got != want {
		return fmt.Errorf("%w: cannot %s this community", errs.ErrForbidden, name)
	}

	m := state.NewMemberships(a.mem, a.log)
	m.Seed(map[int64]bool{*id: d.IsMember})
	if want == policy.ActionJoin {
		err = m.Join(ctx, *id)
	} else {
		err = m.Leave(ctx, *id)
	}
	if err != nil {
		return err
	}
	printJSON(a.out, model.MembershipStatus{IsMember: m.IsMember(*id), CommunityID: *id})
	return nil
}

func (a *app) cmdMembers(ctx context.Context, args []string) error {
	fs := a.flags("members")
	id := fs.Int64("id", 0, "community id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guardCommunity(*id); err != nil {
		return err
	}
	list, err := a.mem.Members(ctx, *id)
	if err != nil {
		return err
	}
	printJSON(a.out, list)
	return nil
}

func (a *app) cmdRole(ctx context.Context, args []string) error {
	fs := a.flags("role")
	id := fs.Int64("id", 0, "community id")
	user := fs.String("user", "", "member user id")
	roleArg := fs.String("role", "", "member|moderator|admin")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guardCommunity(*id); err != nil {
		return err
	}
	target, err := uuid.FromString(*user)
	if err != nil {
		return errs.Invalid("user", "must be a uuid")
	}
	role, err := model.ParseRole(*roleArg)
	if err != nil {
		return err
	}

	var (
		d      model.CommunityDetails
		roster model.MemberList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d, err = a.comm.Details(gctx, *id)
		return err
	})
	g.Go(func() (err error) {
		roster, err = a.mem.Members(gctx, *id)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	me, _ := a.sess.Identity()
	myRole, _ := policy.RoleIn(roster, me)
	actor := policy.ViewerFor(d, me, myRole)

	var row *model.Member
	for i := range roster.Members {
		if roster.Members[i].UserID == target {
			row = &roster.Members[i]
			break
		}
	}
	if row == nil {
		return fmt.Errorf("%w: user is not a member of this community", errs.ErrNotFound)
	}
	if !policy.CanAssignRole(actor, *row, role) {
		return fmt.Errorf("%w: you cannot assign %s to this member", errs.ErrForbidden, role)
	}

	upd, err := a.mem.UpdateRole(ctx, *id, target, role)
	if err != nil {
		return err
	}
	printJSON(a.out, upd)
	return nil
}

// ---- posts, comments, likes ----

func (a *app) cmdPosts(ctx context.Context, args []string) error {
	fs := a.flags("posts")
	id := fs.Int64("id", 0, "community id")
	page := pageFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guardCommunity(*id); err != nil {
		return err
	}
	list, err := a.posts.ListByCommunity(ctx, *id, *page)
	if err != nil {
		return err
	}
	printJSON(a.out, list)
	return nil
}

func (a *app) cmdPost(ctx context.Context, args []string) error {
	verb, rest, err := sub(args)
	if err != nil {
		return err
	}
	fs := a.flags("post " + verb)
	id := fs.Int64("id", 0, "community id")
	postID := fs.Int64("post", 0, "post id")
	text := fs.String("text", "", "content")
	mediaURL := fs.String("media", "", "media url")
	mediaType := fs.String("media-type", "", "media type")
	if err := parse(fs, rest); err != nil {
		return err
	}

	switch verb {
	case "create":
		if err := a.guardCommunity(*id); err != nil {
			return err
		}
		p, err := a.posts.Create(ctx, *id, *text, *mediaURL, *mediaType)
		if err != nil {
			return err
		}
		printJSON(a.out, p)

	case "edit", "rm":
		if err := a.guard(string(nav.Communities)); err != nil {
			return err
		}
		p, err := a.posts.Get(ctx, *postID)
		if err != nil {
			return err
		}
		if verb == "rm" {
			if !policy.CanDeletePost(p) {
				return fmt.Errorf("%w: only the author can delete this post", errs.ErrForbidden)
			}
			if err := a.posts.Delete(ctx, p.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		}
		if !policy.CanEditPost(p) {
			return fmt.Errorf("%w: only the author can edit this post", errs.ErrForbidden)
		}
		upd := model.PostUpdate{
			Content:   optional(fs, "text", *text),
			MediaURL:  optional(fs, "media", *mediaURL),
			MediaType: optional(fs, "media-type", *mediaType),
		}
		p, err = a.posts.Update(ctx, p.ID, upd)
		if err != nil {
			return err
		}
		printJSON(a.out, p)

	default:
		return fmt.Errorf("%w: post %s", errUsage, verb)
	}
	return nil
}

func (a *app) cmdComments(ctx context.Context, args []string) error {
	fs := a.flags("comments")
	postID := fs.Int64("post", 0, "post id")
	page := pageFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guard(string(nav.Communities)); err != nil {
		return err
	}
	list, err := a.comments.ListByPost(ctx, *postID, *page)
	if err != nil {
		return err
	}
	printJSON(a.out, list)
	return nil
}

func (a *app) cmdComment(ctx context.Context, args []string) error {
	verb, rest, err := sub(args)
	if err != nil {
		return err
	}
	fs := a.flags("comment " + verb)
	postID := fs.Int64("post", 0, "post id")
	commentID := fs.Int64("comment", 0, "comment id")
	text := fs.String("text", "", "content")
	if err := parse(fs, rest); err != nil {
		return err
	}
	if err := a.guard(string(nav.Communities)); err != nil {
		return err
	}

	switch verb {
	case "add":
		c, err := a.comments.Create(ctx, *postID, *text)
		if err != nil {
			return err
		}
		printJSON(a.out, c)

	case "rm":
		c, err := a.comments.Get(ctx, *commentID)
		if err != nil {
			return err
		}
		if !policy.CanDeleteComment(c) {
			return fmt.Errorf("%w: only the author can delete this comment", errs.ErrForbidden)
		}
		if err := a.comments.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")

	default:
		return fmt.Errorf("%w: comment %s", errUsage, verb)
	}
	return nil
}

func (a *app) cmdLike(ctx context.Context, args []string) error {
	fs := a.flags("like")
	postID := fs.Int64("post", 0, "post id")
	statusOnly := fs.Bool("status", false, "show without toggling")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guard(string(nav.Communities)); err != nil {
		return err
	}

	likes := state.NewLikes(a.likes)
	var (
		st  model.LikeStatus
		err error
	)
	if *statusOnly {
		st, err = likes.Load(ctx, *postID)
	} else {
		st, err = likes.Toggle(ctx, *postID)
	}
	if err != nil {
		return err
	}
	printJSON(a.out, st)
	return nil
}

// ---- chat ----

func (a *app) cmdRooms(ctx context.Context, args []string) error {
	fs := a.flags("rooms")
	id := fs.Int64("id", 0, "community id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guardCommunity(*id); err != nil {
		return err
	}
	rooms, err := a.chat.ListRooms(ctx, *id)
	if err != nil {
		return err
	}
	printJSON(a.out, rooms)
	return nil
}

func (a *app) cmdRoom(ctx context.Context, args []string) error {
	verb, rest, err := sub(args)
	if err != nil {
		return err
	}
	if verb != "create" {
		return fmt.Errorf("%w: room %s", errUsage, verb)
	}
	fs := a.flags("room create")
	id := fs.Int64("id", 0, "community id")
	title := fs.String("title", "", "room title")
	if err := parse(fs, rest); err != nil {
		return err
	}
	if err := a.guardCommunity(*id); err != nil {
		return err
	}
	room, err := a.chat.CreateRoom(ctx, *id, *title)
	if err != nil {
		return err
	}
	printJSON(a.out, room)
	return nil
}

func (a *app) cmdMessages(ctx context.Context, args []string) error {
	fs := a.flags("messages")
	room := fs.Int64("room", 0, "chat room id")
	page := pageFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.guard(string(nav.Communities)); err != nil {
		return err
	}
	list, err := a.chat.ListMessages(ctx, *room, *page)
	if err != nil {
		return err
	}
	printJSON(a.out, list)
	return nil
}

func (a *app) cmdSay(ctx context.Context, args []string) error {
	fs := a.flags("say")
	room := fs.Int64("room", 0, "chat room id")
	text := fs.String("text", "", "message text")
	image := fs.String("image", "", "image url")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need((*text == "") != (*image == ""), "exactly one of -text or -image"); err != nil {
		return err
	}
	if err := a.guard(string(nav.Communities)); err != nil {
		return err
	}

	var (
		msg model.ChatMessage
		err error
	)
	if *image != "" {
		msg, err = a.chat.SendImage(ctx, *room, *image)
	} else {
		msg, err = a.chat.Send(ctx, *room, *text)
	}
	if err != nil {
		return err
	}
	printJSON(a.out, msg)
	return nil
}

// ---- profile ----

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	if err := a.guard(string(nav.Profile)); err != nil {
		return err
	}
	if len(args) == 0 {
		p, err := a.users.Profile(ctx)
		if err != nil {
			return err
		}
		printJSON(a.out, p)
		return nil
	}

	verb, rest, _ := sub(args)
	if verb != "set" {
		return fmt.Errorf("%w: profile %s", errUsage, verb)
	}
	fs := a.flags("profile set")
	name := fs.String("name", "", "display name")
	bio := fs.String("bio", "", "bio")
	if err := parse(fs, rest); err != nil {
		return err
	}
	p, err := a.users.UpdateProfile(ctx, name, bio)
	if err != nil {
		return err
	}
	printJSON(a.out, p)
	return nil
}
