package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/config"
	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
	"github.com/and161185/agora/internal/nav"
	"github.com/and161185/agora/internal/service"
	"github.com/and161185/agora/internal/session"
	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

// app wires one session, client and the resource services for a CLI run.
type app struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer
	// in feeds watch with lines to send; nil means watch only reads.
	in  io.Reader

	sess   *session.Session
	api    *apiclient.Client
	router *nav.Router

	auth     *service.AuthServiceImpl
	comm     *service.CommunityServiceImpl
	mem      *service.MembershipServiceImpl
	posts    *service.PostServiceImpl
	comments *service.CommentServiceImpl
	likes    *service.LikeServiceImpl
	chat     *service.ChatServiceImpl
	users    *service.UserServiceImpl
}

func newApp(cfg *config.Config, log *zap.Logger, out io.Writer) (*app, error) {
	sess, err := session.Open(session.NewFileStore(cfg.ConfigDir))
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	api, err := apiclient.New(cfg.APIURL, sess,
		apiclient.WithLogger(log),
		apiclient.WithTimeout(cfg.HTTPTimeout),
	)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		log:      log,
		out:      out,
		sess:     sess,
		api:      api,
		router:   nav.New(sess),
		auth:     service.NewAuthService(api, sess, log),
		comm:     service.NewCommunityService(api),
		mem:      service.NewMembershipService(api),
		posts:    service.NewPostService(api, cfg.PostsPageSize),
		comments: service.NewCommentService(api),
		likes:    service.NewLikeService(api),
		chat:     service.NewChatService(api, cfg.MessagesPageSize),
		users:    service.NewUserService(api),
	}, nil
}

type command func(ctx context.Context, args []string) error

func (a *app) commands() map[string]command {
	return map[string]command{
		"version":     a.cmdVersion,
		"signup":      a.cmdSignup,
		"login":       a.cmdLogin,
		"logout":      a.cmdLogout,
		"whoami":      a.cmdWhoami,
		"communities": a.cmdCommunities,
		"community":   a.cmdCommunity,
		"join":        a.cmdJoin,
		"leave":       a.cmdLeave,
		"members":     a.cmdMembers,
		"role":        a.cmdRole,
		"posts":       a.cmdPosts,
		"post":        a.cmdPost,
		"comments":    a.cmdComments,
		"comment":     a.cmdComment,
		"like":        a.cmdLike,
		"rooms":       a.cmdRooms,
		"room":        a.cmdRoom,
		"messages":    a.cmdMessages,
		"say":         a.cmdSay,
		"watch":       a.cmdWatch,
		"profile":     a.cmdProfile,
	}
}

// run executes one subcommand. Everything except watch gets a deadline.
func (a *app) run(ctx context.Context, name string, args []string) error {
	cmd, ok := a.commands()[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	if name != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, commandTimeout)
		defer cancel()
	}
	return cmd(ctx, args)
}

// guard resolves path through the router and refuses protected pages
// without a session.
func (a *app) guard(path string) error {
	res := a.router.Resolve(path)
	if !res.Redirected {
		return nil
	}
	if res.Page == nav.Login {
		return fmt.Errorf("%w: run `agora login` first", errs.ErrNoSession)
	}
	return errs.Invalid("id", "must be a positive number")
}

func (a *app) guardCommunity(id int64) error {
	return a.guard(nav.CommunityPath(id))
}

// flags returns a flag set that reports parse errors instead of exiting.
func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func pageFlags(fs *flag.FlagSet) *model.Page {
	p := &model.Page{}
	fs.IntVar(&p.Skip, "skip", 0, "items to skip")
	fs.IntVar(&p.Limit, "limit", 0, "page size")
	return p
}

// sub splits "<verb> [flags]" for commands with verbs.
func sub(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: missing subcommand", errUsage)
	}
	return args[0], args[1:], nil
}

func need(ok bool, what string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: need %s", errUsage, what)
}

func optional(fs *flag.FlagSet, name, value string) *string {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &value
}
