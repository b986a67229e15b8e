// Package fakeapi is an in-memory stand-in for the community backend. It speaks
// the same JSON wire format and enforces the same membership rules, so the
// client packages can be tested end to end over real HTTP.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/agora/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const userIDKey ctxKey = "fakeapi.userID"

func withUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func userIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

type user struct {
	id          uuid.UUID
	email       string
	username    string
	salt, hash  []byte
	displayName *string
	bio         *string
	createdAt   time.Time
}

func (u *user) name() string {
	switch {
	case u.displayName != nil && *u.displayName != "":
		return *u.displayName
	case u.username != "":
		return u.username
	}
	return u.email
}

type fault struct {
	status int
	detail string
}

// Server is a running fake backend. All exported methods are safe for
// concurrent use with in-flight requests.
type Server struct {
	URL string

	srv     *httptest.Server
	signKey []byte

	mu          sync.Mutex
	seq         int64
	users       map[string]*user
	byID        map[uuid.UUID]*user
	revoked     map[string]bool
	communities map[int64]*model.Community
	members     map[int64]map[uuid.UUID]*model.Membership
	posts       map[int64]*model.Post
	comments    map[int64]*model.Comment
	likes       map[int64]map[uuid.UUID]bool
	rooms       map[int64]*model.ChatRoom
	messages    map[int64][]model.ChatMessage

	faults map[string]fault
	holds  map[string]chan struct{}
	hits   map[string]int
}

// New starts a fake backend and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		signKey:     []byte("fakeapi-signing-key"),
		users:       map[string]*user{},
		byID:        map[uuid.UUID]*user{},
		revoked:     map[string]bool{},
		communities: map[int64]*model.Community{},
		members:     map[int64]map[uuid.UUID]*model.Membership{},
		posts:       map[int64]*model.Post{},
		comments:    map[int64]*model.Comment{},
		likes:       map[int64]map[uuid.UUID]bool{},
		rooms:       map[int64]*model.ChatRoom{},
		messages:    map[int64][]model.ChatMessage{},
		faults:      map[string]fault{},
		holds:       map[string]chan struct{}{},
		hits:        map[string]int{},
	}
	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.With(s.requireAuth).Post("/logout", s.handleLogout)
	})

	r.Route("/communities", func(r chi.Router) {
		r.Use(s.optionalAuth)
		r.Get("/", s.handleListCommunities)
		r.Get("/{id}", s.handleGetCommunity)
		r.Get("/{id}/details", s.handleCommunityDetails)
		r.With(s.requireAuth).Post("/", s.handleCreateCommunity)
		r.With(s.requireAuth).Put("/{id}", s.handleUpdateCommunity)
		r.With(s.requireAuth).Delete("/{id}", s.handleDeleteCommunity)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/memberships", func(r chi.Router) {
			r.Post("/join/{id}", s.handleJoin)
			r.Delete("/leave/{id}", s.handleLeave)
			r.Get("/status/{id}", s.handleMembershipStatus)
			r.Get("/my-communities", s.handleMyCommunities)
			r.Get("/community/{id}/members", s.handleMembers)
			r.Put("/community/{id}/members/{userID}/role", s.handleUpdateRole)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", s.handleCreatePost)
			r.Get("/community/{id}", s.handleListPosts)
			r.Get("/{id}", s.handleGetPost)
			r.Put("/{id}", s.handleUpdatePost)
			r.Delete("/{id}", s.handleDeletePost)
		})

		r.Route("/comments", func(r chi.Router) {
			r.Post("/", s.handleCreateComment)
			r.Get("/post/{id}", s.handleListComments)
			r.Get("/{id}", s.handleGetComment)
			r.Delete("/{id}", s.handleDeleteComment)
		})

		r.Route("/likes", func(r chi.Router) {
			r.Post("/toggle/{id}", s.handleToggleLike)
			r.Get("/status/{id}", s.handleLikeStatus)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/rooms", s.handleCreateRoom)
			r.Get("/rooms/community/{id}", s.handleListRooms)
			r.Post("/messages", s.handleSendMessage)
			r.Get("/messages/{id}", s.handleListMessages)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)
		})
	})
	return r
}

// --- test controls ---

func routeKey(method, path string) string { return method + " " + path }

// Fail makes every request to method+path answer status with detail until
// Heal is called.
func (s *Server) Fail(method, path string, status int, detail string) {
	s.mu.Lock()
	s.faults[routeKey(method, path)] = fault{status: status, detail: detail}
	s.mu.Unlock()
}

// Heal removes a fault installed by Fail.
func (s *Server) Heal(method, path string) {
	s.mu.Lock()
	delete(s.faults, routeKey(method, path))
	s.mu.Unlock()
}

// Hold blocks requests to method+path until the returned release is called.
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[routeKey(method, path)] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, routeKey(method, path))
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Hits reports how many requests reached method+path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[routeKey(method, path)]
}

// TotalHits reports the number of requests served so far.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// Register creates a user directly and returns its id.
func (s *Server) Register(email, password, username string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.addUser(email, password, username)
	if !ok {
		return s.users[email].id
	}
	return u.id
}

// TokenFor issues a valid bearer token for an existing user.
func (s *Server) TokenFor(id uuid.UUID) string {
	tok, _, err := s.issue(id)
	if err != nil {
		panic(err)
	}
	return tok
}

// --- middleware ---

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r.Method, r.URL.Path)
		s.mu.Lock()
		s.hits[key]++
		f, failing := s.faults[key]
		hold := s.holds[key]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeError(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userIDFromCtx(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), id)))
	})
}

func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := s.authenticate(r); err == nil {
			r = r.WithContext(withUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func (s *Server) authenticate(r *http.Request) (uuid.UUID, error) {
	tok, ok := bearer(r)
	if !ok {
		return uuid.Nil, errors.New("Not authenticated")
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errors.New("Invalid token")
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("Invalid token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[tok] {
		return uuid.Nil, errors.New("Token revoked")
	}
	if _, ok := s.byID[id]; !ok {
		return uuid.Nil, errors.New("User not found")
	}
	return id, nil
}

func (s *Server) issue(id uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        strconv.FormatInt(now.UnixNano(), 36),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	return signed, exp, err
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeInvalid mimics a request-schema rejection.
func writeInvalid(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]string{{"msg": msg, "type": "value_error"}},
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeInvalid(w, "invalid JSON body")
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeInvalid(w, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func paging(r *http.Request, defLimit int) (skip, limit int) {
	skip, limit = 0, defLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v >= 0 {
		skip = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	return skip, limit
}

func window(n, skip, limit int) (lo, hi int) {
	lo = min(skip, n)
	hi = min(lo+limit, n)
	return lo, hi
}

func (s *Server) nextID() int64 {
	s.seq++
	return s.seq
}

// canAccess reports owner-or-member. Caller holds s.mu.
func (s *Server) canAccess(communityID int64, uid uuid.UUID) bool {
	c, ok := s.communities[communityID]
	if !ok {
		return false
	}
	if c.CreatedBy != nil && *c.CreatedBy == uid {
		return true
	}
	_, member := s.members[communityID][uid]
	return member
}

func (s *Server) isOwner(communityID int64, uid uuid.UUID) bool {
	c, ok := s.communities[communityID]
	return ok && c.CreatedBy != nil && *c.CreatedBy == uid
}

func (s *Server) displayName(uid uuid.UUID) *string {
	u, ok := s.byID[uid]
	if !ok {
		return nil
	}
	n := u.name()
	return &n
}
