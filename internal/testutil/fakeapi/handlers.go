package fakeapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/and161185/agora/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

// --- auth ---

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if !decode(w, r, &in) {
		return
	}
	if in.Email == "" || in.Password == "" {
		writeInvalid(w, "email and password are required")
		return
	}

	s.mu.Lock()
	u, ok := s.addUser(in.Email, in.Password, in.Username)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusBadRequest, "Signup error: User already registered")
		return
	}
	writeJSON(w, http.StatusOK, model.SignupResponse{
		Message: "User created successfully",
		User:    model.SessionUser{ID: u.id, Email: u.email},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	u, ok := s.users[in.Email]
	s.mu.Unlock()
	if !ok || !verifyPassword([]byte(in.Password), u.salt, u.hash) {
		writeError(w, http.StatusBadRequest, "Login failed - invalid credentials")
		return
	}

	tok, exp, err := s.issue(u.id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResponse{
		Message: "Login successful",
		Session: model.Session{
			AccessToken: tok,
			TokenType:   "bearer",
			ExpiresIn:   int64(time.Until(exp).Seconds()),
			ExpiresAt:   exp.Unix(),
			User:        model.SessionUser{ID: u.id, Email: u.email},
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	tok, _ := bearer(r)
	s.mu.Lock()
	s.revoked[tok] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, model.Ack{Message: "Successfully logged out"})
}

// --- communities ---

func (s *Server) sortedCommunities() []model.Community {
	out := make([]model.Community, 0, len(s.communities))
	for _, c := range s.communities {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handleListCommunities(w http.ResponseWriter, r *http.Request) {
	skip, limit := paging(r, 100)
	s.mu.Lock()
	all := s.sortedCommunities()
	s.mu.Unlock()
	lo, hi := window(len(all), skip, limit)
	writeJSON(w, http.StatusOK, all[lo:hi])
}

func (s *Server) handleGetCommunity(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	c, found := s.communities[id]
	var out model.Community
	if found {
		out = *c
	}
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Community not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCommunityDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, found := s.communities[id]
	if !found {
		writeError(w, http.StatusNotFound, "Community not found")
		return
	}
	d := model.CommunityDetails{Community: *c, MemberCount: len(s.members[id])}
	if c.CreatedBy != nil {
		if _, ownerIsMember := s.members[id][*c.CreatedBy]; !ownerIsMember {
			d.MemberCount++
		}
	}
	if uid, ok := userIDFromCtx(r.Context()); ok {
		d.IsOwner = s.isOwner(id, uid)
		d.IsMember = s.canAccess(id, uid)
	}
	writeJSON(w, http.StatusOK, d)
}

func validCommunityName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != "" && utf8.RuneCountInString(name) <= 100
}

func (s *Server) handleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	var in model.CommunityInput
	if !decode(w, r, &in) {
		return
	}
	name, ok := validCommunityName(in.Name)
	if !ok {
		writeInvalid(w, "name must be 1-100 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.communities {
		if strings.EqualFold(c.Name, name) {
			writeError(w, http.StatusBadRequest, "Community name already exists")
			return
		}
	}
	owner := uid
	c := &model.Community{
		ID:          s.nextID(),
		Name:        name,
		Description: in.Description,
		CreatedBy:   &owner,
		CreatedAt:   time.Now().UTC(),
	}
	s.communities[c.ID] = c
	s.members[c.ID] = map[uuid.UUID]*model.Membership{}

	room := &model.ChatRoom{ID: s.nextID(), CommunityID: c.ID, Title: "General", CreatedAt: c.CreatedAt}
	s.rooms[room.ID] = room

	writeJSON(w, http.StatusOK, *c)
}

func (s *Server) handleUpdateCommunity(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in model.CommunityInput
	if !decode(w, r, &in) {
		return
	}
	name, ok := validCommunityName(in.Name)
	if !ok {
		writeInvalid(w, "name must be 1-100 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.communities[id]
	if !found {
		writeError(w, http.StatusNotFound, "Community not found")
		return
	}
	if !s.isOwner(id, uid) {
		writeError(w, http.StatusBadRequest, "You can only edit communities you created")
		return
	}
	c.Name = name
	c.Description = in.Description
	writeJSON(w, http.StatusOK, *c)
}

func (s *Server) handleDeleteCommunity(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[id]; !found {
		writeError(w, http.StatusNotFound, "Community not found")
		return
	}
	if !s.isOwner(id, uid) {
		writeError(w, http.StatusBadRequest, "You can only delete communities you created")
		return
	}
	delete(s.communities, id)
	delete(s.members, id)
	for pid, p := range s.posts {
		if p.CommunityID == id {
			delete(s.posts, pid)
			delete(s.likes, pid)
		}
	}
	for rid, room := range s.rooms {
		if room.CommunityID == id {
			delete(s.rooms, rid)
			delete(s.messages, rid)
		}
	}
	writeJSON(w, http.StatusOK, model.Ack{Message: "Community deleted successfully"})
}

// --- memberships ---

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[id]; !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if _, exists := s.members[id][uid]; exists {
		writeError(w, http.StatusBadRequest, "You are already a member of this community")
		return
	}
	if s.isOwner(id, uid) {
		writeError(w, http.StatusBadRequest, "You are the owner of this community")
		return
	}
	m := &model.Membership{
		ID:          s.nextID(),
		UserID:      uid,
		CommunityID: id,
		Role:        model.RoleMember,
		JoinedAt:    time.Now().UTC(),
	}
	s.members[id][uid] = m
	writeJSON(w, http.StatusOK, model.JoinResult{Message: "Successfully joined the community", Membership: *m})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[id]; !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if s.isOwner(id, uid) {
		writeError(w, http.StatusBadRequest, "Community owners cannot leave their own community")
		return
	}
	if _, exists := s.members[id][uid]; !exists {
		writeError(w, http.StatusBadRequest, "You are not a member of this community")
		return
	}
	delete(s.members[id], uid)
	writeJSON(w, http.StatusOK, model.LeaveResult{Message: "Successfully left the community", CommunityID: id})
}

func (s *Server) handleMembershipStatus(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	_, member := s.members[id][uid]
	s.mu.Unlock()
	msg := "Not a member"
	if member {
		msg = "Member"
	}
	writeJSON(w, http.StatusOK, model.MembershipStatus{IsMember: member, CommunityID: id, Message: msg})
}

func (s *Server) handleMyCommunities(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	s.mu.Lock()
	out := []model.Community{}
	for _, c := range s.sortedCommunities() {
		if _, member := s.members[c.ID][uid]; member {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.communities[id]
	if !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if !s.canAccess(id, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to view members")
		return
	}

	rows := make([]model.Member, 0, len(s.members[id])+1)
	ownerListed := false
	for _, m := range s.members[id] {
		row := model.Member{Membership: *m, DisplayName: s.displayName(m.UserID)}
		if c.CreatedBy != nil && m.UserID == *c.CreatedBy {
			row.IsOwner = true
			ownerListed = true
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	if c.CreatedBy != nil && !ownerListed {
		owner := model.Member{
			Membership: model.Membership{
				UserID:      *c.CreatedBy,
				CommunityID: id,
				Role:        model.RoleOwner,
				JoinedAt:    c.CreatedAt,
			},
			DisplayName: s.displayName(*c.CreatedBy),
			IsOwner:     true,
		}
		rows = append([]model.Member{owner}, rows...)
	}
	writeJSON(w, http.StatusOK, model.MemberList{Members: rows, TotalCount: len(rows), CommunityID: id})
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	target, err := uuid.FromString(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	var in struct {
		NewRole model.Role `json:"new_role"`
		Role    model.Role `json:"role"`
	}
	if !decode(w, r, &in) {
		return
	}
	role := in.NewRole
	if role == "" {
		role = in.Role
	}
	if !role.Valid() {
		writeInvalid(w, "role must be one of member, moderator, admin")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[id]; !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if !s.isOwner(id, uid) {
		actor, member := s.members[id][uid]
		if !member || (actor.Role != model.RoleAdmin && actor.Role != model.RoleOwner) {
			writeError(w, http.StatusBadRequest, "You must be an owner or admin to change member roles")
			return
		}
	}
	m, member := s.members[id][target]
	if !member {
		writeError(w, http.StatusBadRequest, "Target user is not a member of this community")
		return
	}
	if s.isOwner(id, target) {
		writeError(w, http.StatusBadRequest, "Cannot change the role of the community owner")
		return
	}
	m.Role = role
	writeJSON(w, http.StatusOK, model.RoleUpdate{
		Message:    "Successfully updated member role to " + string(role),
		Membership: model.Member{Membership: *m, DisplayName: s.displayName(target)},
	})
}

// --- posts ---

func (s *Server) postView(p *model.Post, viewer uuid.UUID) model.Post {
	out := *p
	out.AuthorName = s.displayName(p.AuthorID)
	out.IsAuthor = p.AuthorID == viewer
	return out
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	var in model.NewPost
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Content) == "" || utf8.RuneCountInString(in.Content) > 1000 {
		writeInvalid(w, "content must be 1-1000 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[in.CommunityID]; !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if !s.canAccess(in.CommunityID, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to create posts")
		return
	}
	p := &model.Post{
		ID:          s.nextID(),
		CommunityID: in.CommunityID,
		AuthorID:    uid,
		Content:     in.Content,
		MediaURL:    in.MediaURL,
		MediaType:   in.MediaType,
		CreatedAt:   time.Now().UTC(),
	}
	s.posts[p.ID] = p
	writeJSON(w, http.StatusOK, s.postView(p, uid))
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	skip, limit := paging(r, 20)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[id]; !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if !s.canAccess(id, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to view posts")
		return
	}
	all := make([]*model.Post, 0)
	for _, p := range s.posts {
		if p.CommunityID == id {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	lo, hi := window(len(all), skip, limit)
	page := make([]model.Post, 0, hi-lo)
	for _, p := range all[lo:hi] {
		page = append(page, s.postView(p, uid))
	}
	writeJSON(w, http.StatusOK, model.PostList{
		Posts:      page,
		TotalCount: len(all),
		Page:       skip/limit + 1,
		PageSize:   limit,
		HasMore:    skip+limit < len(all),
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[id]
	if !found {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, s.postView(p, uid))
}

// postPatch tells an absent media field from an explicit null.
type postPatch struct {
	Content   *string         `json:"content"`
	MediaURL  json.RawMessage `json:"media_url"`
	MediaType json.RawMessage `json:"media_type"`
}

// nullable reports whether raw was present, and its value when not null.
func nullable(raw json.RawMessage) (set bool, v *string, err error) {
	if raw == nil {
		return false, nil, nil
	}
	if string(raw) == "null" {
		return true, nil, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return true, nil, err
	}
	return true, &str, nil
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in postPatch
	if !decode(w, r, &in) {
		return
	}
	if in.Content != nil && (strings.TrimSpace(*in.Content) == "" || utf8.RuneCountInString(*in.Content) > 1000) {
		writeInvalid(w, "content must be 1-1000 characters")
		return
	}
	urlSet, mediaURL, err := nullable(in.MediaURL)
	if err != nil {
		writeInvalid(w, "media_url must be a string or null")
		return
	}
	typeSet, mediaType, err := nullable(in.MediaType)
	if err != nil {
		writeInvalid(w, "media_type must be a string or null")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[id]
	if !found {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if p.AuthorID != uid {
		writeError(w, http.StatusBadRequest, "You can only edit your own posts")
		return
	}
	if in.Content != nil {
		p.Content = *in.Content
	}
	if urlSet {
		p.MediaURL = mediaURL
	}
	if typeSet {
		p.MediaType = mediaType
	}
	now := time.Now().UTC()
	p.UpdatedAt = &now
	writeJSON(w, http.StatusOK, s.postView(p, uid))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[id]
	if !found {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if p.AuthorID != uid {
		writeError(w, http.StatusBadRequest, "You can only delete your own posts")
		return
	}
	delete(s.posts, id)
	delete(s.likes, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	writeJSON(w, http.StatusOK, model.Ack{Message: "Post deleted successfully"})
}

// --- comments ---

func (s *Server) commentView(c *model.Comment, viewer uuid.UUID) model.Comment {
	out := *c
	out.AuthorName = s.displayName(c.AuthorID)
	out.IsAuthor = c.AuthorID == viewer
	return out
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	var in model.NewComment
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Content) == "" || utf8.RuneCountInString(in.Content) > 500 {
		writeInvalid(w, "content must be 1-500 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[in.PostID]
	if !found {
		writeError(w, http.StatusBadRequest, "Post not found")
		return
	}
	if !s.canAccess(p.CommunityID, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to comment")
		return
	}
	c := &model.Comment{
		ID:        s.nextID(),
		PostID:    in.PostID,
		AuthorID:  uid,
		Content:   in.Content,
		CreatedAt: time.Now().UTC(),
	}
	s.comments[c.ID] = c
	writeJSON(w, http.StatusOK, s.commentView(c, uid))
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	skip, limit := paging(r, 20)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[id]
	if !found {
		writeError(w, http.StatusBadRequest, "Post not found")
		return
	}
	if !s.canAccess(p.CommunityID, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to view comments")
		return
	}
	all := make([]*model.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == id {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	lo, hi := window(len(all), skip, limit)
	page := make([]model.Comment, 0, hi-lo)
	for _, c := range all[lo:hi] {
		page = append(page, s.commentView(c, uid))
	}
	writeJSON(w, http.StatusOK, model.CommentList{
		Comments:   page,
		TotalCount: len(all),
		Page:       skip/limit + 1,
		PageSize:   limit,
		HasMore:    skip+limit < len(all),
	})
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.comments[id]
	if !found {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	writeJSON(w, http.StatusOK, s.commentView(c, uid))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.comments[id]
	if !found {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if c.AuthorID != uid {
		writeError(w, http.StatusBadRequest, "You can only delete your own comments")
		return
	}
	delete(s.comments, id)
	writeJSON(w, http.StatusOK, model.Ack{Message: "Comment deleted successfully"})
}

// --- likes ---

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.posts[id]
	if !found {
		writeError(w, http.StatusBadRequest, "Post not found")
		return
	}
	if !s.canAccess(p.CommunityID, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to like posts")
		return
	}
	if s.likes[id] == nil {
		s.likes[id] = map[uuid.UUID]bool{}
	}
	out := model.LikeStatus{PostID: id}
	if s.likes[id][uid] {
		delete(s.likes[id], uid)
		out.Message = "Post unliked successfully"
	} else {
		s.likes[id][uid] = true
		out.IsLiked = true
		out.Message = "Post liked successfully"
	}
	out.LikeCount = len(s.likes[id])
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLikeStatus(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.posts[id]; !found {
		writeError(w, http.StatusBadRequest, "Post not found")
		return
	}
	writeJSON(w, http.StatusOK, model.LikeStatus{
		PostID:    id,
		IsLiked:   s.likes[id][uid],
		LikeCount: len(s.likes[id]),
	})
}

// --- chat ---

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	var in model.NewChatRoom
	if !decode(w, r, &in) {
		return
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > 50 {
		writeInvalid(w, "title must be 1-50 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[in.CommunityID]; !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if !s.canAccess(in.CommunityID, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to create chat rooms")
		return
	}
	for _, room := range s.rooms {
		if room.CommunityID == in.CommunityID && room.Title == title {
			writeError(w, http.StatusBadRequest, "A chat room with this title already exists in this community")
			return
		}
	}
	room := &model.ChatRoom{ID: s.nextID(), CommunityID: in.CommunityID, Title: title, CreatedAt: time.Now().UTC()}
	s.rooms[room.ID] = room
	writeJSON(w, http.StatusOK, *room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.communities[id]; !found {
		writeError(w, http.StatusBadRequest, "Community not found")
		return
	}
	if !s.canAccess(id, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to view chat rooms")
		return
	}
	out := []model.ChatRoom{}
	for _, room := range s.rooms {
		if room.CommunityID == id {
			out = append(out, *room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	var in model.NewMessage
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Content) == "" || utf8.RuneCountInString(in.Content) > 1000 {
		writeInvalid(w, "content must be 1-1000 characters")
		return
	}
	if in.Type == "" {
		in.Type = model.MessageText
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	room, found := s.rooms[in.ChatID]
	if !found {
		writeError(w, http.StatusBadRequest, "Chat room not found")
		return
	}
	if !s.canAccess(room.CommunityID, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to send messages")
		return
	}
	sender := uid
	msg := model.ChatMessage{
		ID:       s.nextID(),
		ChatID:   in.ChatID,
		SenderID: &sender,
		Content:  in.Content,
		Type:     in.Type,
		SentAt:   time.Now().UTC(),
	}
	s.messages[in.ChatID] = append(s.messages[in.ChatID], msg)

	msg.SenderName = s.displayName(uid)
	msg.IsSender = true
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	skip, limit := paging(r, 50)

	s.mu.Lock()
	defer s.mu.Unlock()
	room, found := s.rooms[id]
	if !found {
		writeError(w, http.StatusBadRequest, "Chat room not found")
		return
	}
	if !s.canAccess(room.CommunityID, uid) {
		writeError(w, http.StatusBadRequest, "You must be a member of this community to view messages")
		return
	}

	// newest-first window, returned oldest-first
	all := s.messages[id]
	n := len(all)
	lo, hi := window(n, skip, limit)
	page := make([]model.ChatMessage, 0, hi-lo)
	for i := n - hi; i < n-lo; i++ {
		m := all[i]
		if m.SenderID != nil {
			m.SenderName = s.displayName(*m.SenderID)
			m.IsSender = *m.SenderID == uid
		}
		page = append(page, m)
	}
	writeJSON(w, http.StatusOK, model.MessageList{
		Messages:   page,
		TotalCount: n,
		ChatID:     id,
		HasMore:    skip+limit < n,
	})
}

// --- users ---

func (s *Server) profile(u *user) model.Profile {
	return model.Profile{
		UserID:      u.id,
		Email:       u.email,
		DisplayName: u.displayName,
		Bio:         u.bio,
		CreatedAt:   u.createdAt,
	}
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.profile(s.byID[uid]))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := userIDFromCtx(r.Context())
	var in model.ProfileUpdate
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byID[uid]
	u.displayName = in.DisplayName
	u.bio = in.Bio
	writeJSON(w, http.StatusOK, s.profile(u))
}
