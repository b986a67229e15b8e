// Package nav maps application paths to pages and applies the login guard.
//
// Public pages: /, /login, /signup.
// Protected pages: /communities, /communities/{communityID}, /profile.
// A protected page without a session redirects to /login; any unknown path
// resolves to /.
package nav

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Page is a route pattern.
type Page string

const (
	Home        Page = "/"
	Login       Page = "/login"
	Signup      Page = "/signup"
	Communities Page = "/communities"
	Community   Page = "/communities/{communityID}"
	Profile     Page = "/profile"
)

// Authenticator reports whether a session token is present.
type Authenticator interface {
	IsAuthenticated() bool
}

// Resolution is where a path lands.
type Resolution struct {
	Page Page
	// Path is the concrete path to show, which differs from the requested
	// one after a redirect.
	Path        string
	CommunityID int64
	Redirected  bool
}

// Router resolves paths against a chi route tree.
type Router struct {
	mux       *chi.Mux
	auth      Authenticator
	protected map[string]Page
	public    map[string]Page
}

// New builds the route table.
func New(auth Authenticator) *Router {
	r := &Router{
		mux:       chi.NewRouter(),
		auth:      auth,
		protected: map[string]Page{},
		public:    map[string]Page{},
	}
	for _, p := range []Page{Home, Login, Signup} {
		r.public[string(p)] = p
		r.mux.Get(string(p), noop)
	}
	for pattern, p := range map[string]Page{
		string(Communities):                 Communities,
		"/communities/{communityID:[0-9]+}": Community,
		string(Profile):                     Profile,
	} {
		r.protected[pattern] = p
		r.mux.Get(pattern, noop)
	}
	return r
}

func noop(http.ResponseWriter, *http.Request) {}

// Resolve returns the page for path, applying the login guard.
func (r *Router) Resolve(path string) Resolution {
	if path == "" {
		path = string(Home)
	}
	rctx := chi.NewRouteContext()
	if !r.mux.Match(rctx, http.MethodGet, path) {
		return Resolution{Page: Home, Path: string(Home), Redirected: path != string(Home)}
	}

	pattern := rctx.RoutePattern()
	if p, ok := r.public[pattern]; ok {
		return Resolution{Page: p, Path: path}
	}

	p, ok := r.protected[pattern]
	if !ok {
		return Resolution{Page: Home, Path: string(Home), Redirected: true}
	}
	if r.auth == nil || !r.auth.IsAuthenticated() {
		return Resolution{Page: Login, Path: string(Login), Redirected: true}
	}

	res := Resolution{Page: p, Path: path}
	if p == Community {
		id, err := strconv.ParseInt(rctx.URLParam("communityID"), 10, 64)
		if err != nil || id <= 0 {
			return Resolution{Page: Home, Path: string(Home), Redirected: true}
		}
		res.CommunityID = id
	}
	return res
}

// Allowed reports whether path can be shown as requested.
func (r *Router) Allowed(path string) bool {
	return !r.Resolve(path).Redirected
}

// CommunityPath builds the concrete path of a community page.
func CommunityPath(id int64) string {
	return "/communities/" + strconv.FormatInt(id, 10)
}
