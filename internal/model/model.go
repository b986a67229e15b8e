// Package model defines the wire entities exchanged with the community backend.
// The backend owns every entity; the client only holds transient copies.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Page carries optional list pagination. Zero Limit means "use the default".
type Page struct {
	Skip  int
	Limit int
}

// Ack is the generic acknowledgement body of deletes and logout.
type Ack struct {
	Message string `json:"message"`
}

// SessionUser is the identity embedded in the login session.
type SessionUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is the auth provider's session payload returned by login.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	TokenType    string      `json:"token_type,omitempty"`
	ExpiresIn    int64       `json:"expires_in,omitempty"`
	ExpiresAt    int64       `json:"expires_at,omitempty"` // unix seconds
	User         SessionUser `json:"user"`
}

// LoginResponse wraps the session issued by POST /auth/login.
type LoginResponse struct {
	Message string  `json:"message"`
	Session Session `json:"session"`
}

// SignupResponse is returned by POST /auth/signup.
type SignupResponse struct {
	Message string      `json:"message"`
	User    SessionUser `json:"user"`
}

// Credentials is the login/signup request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

// Community is the public view of a community.
type Community struct {
	ID          int64      `json:"community_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	CreatedBy   *uuid.UUID `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CommunityDetails adds viewer-relative flags computed by the server.
type CommunityDetails struct {
	Community
	MemberCount int  `json:"member_count"`
	IsMember    bool `json:"is_member"`
	IsOwner     bool `json:"is_owner"`
}

// CommunityInput is the create/update body. Nil fields are sent as null.
type CommunityInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// Membership is a (user, community) relation with its role.
type Membership struct {
	ID          int64     `json:"membership_id"`
	UserID      uuid.UUID `json:"user_id"`
	CommunityID int64     `json:"community_id"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Member is a roster row; IsOwner outranks Role.
type Member struct {
	Membership
	DisplayName *string `json:"user_display_name"`
	IsOwner     bool    `json:"is_owner"`
}

// EffectiveRole is the role used for display and permissions.
func (m Member) EffectiveRole() Role {
	if m.IsOwner || m.Role == RoleOwner {
		return RoleOwner
	}
	return m.Role
}

// MemberList is the roster of GET /memberships/community/{id}/members.
type MemberList struct {
	Members     []Member `json:"members"`
	TotalCount  int      `json:"total_count"`
	CommunityID int64    `json:"community_id"`
}

// MembershipStatus answers "is the viewer a member".
type MembershipStatus struct {
	IsMember    bool   `json:"is_member"`
	CommunityID int64  `json:"community_id"`
	Message     string `json:"message"`
}

// JoinResult is returned by POST /memberships/join/{id}.
type JoinResult struct {
	Message    string     `json:"message"`
	Membership Membership `json:"membership"`
}

// LeaveResult is returned by DELETE /memberships/leave/{id}.
type LeaveResult struct {
	Message     string `json:"message"`
	CommunityID int64  `json:"community_id"`
}

// RoleUpdate is returned by the role change endpoint.
type RoleUpdate struct {
	Message    string `json:"message"`
	Membership Member `json:"membership"`
}

// Post is a community post. Media fields are both nil for text posts.
type Post struct {
	ID          int64      `json:"post_id"`
	CommunityID int64      `json:"community_id"`
	AuthorID    uuid.UUID  `json:"author_id"`
	Content     string     `json:"content"`
	MediaURL    *string    `json:"media_url"`
	MediaType   *string    `json:"media_type"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	AuthorName  *string    `json:"author_display_name"`
	IsAuthor    bool       `json:"is_author"`
}

// PostList is one page of a community feed.
type PostList struct {
	Posts      []Post `json:"posts"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	HasMore    bool   `json:"has_more"`
}

// NewPost is the create body.
type NewPost struct {
	CommunityID int64   `json:"community_id"`
	Content     string  `json:"content"`
	MediaURL    *string `json:"media_url"`
	MediaType   *string `json:"media_type"`
}

// PostUpdate is a partial update; nil fields are omitted. ClearMedia sends
// explicit nulls for both media fields, removing the attachment.
type PostUpdate struct {
	Content    *string `json:"content,omitempty"`
	MediaURL   *string `json:"media_url,omitempty"`
	MediaType  *string `json:"media_type,omitempty"`
	ClearMedia bool    `json:"-"`
}

func (u PostUpdate) MarshalJSON() ([]byte, error) {
	type plain PostUpdate
	if !u.ClearMedia {
		return json.Marshal(plain(u))
	}
	return json.Marshal(struct {
		Content   *string `json:"content,omitempty"`
		MediaURL  *string `json:"media_url"`
		MediaType *string `json:"media_type"`
	}{Content: u.Content})
}

// Comment belongs to a post.
type Comment struct {
	ID         int64     `json:"comment_id"`
	PostID     int64     `json:"post_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	AuthorName *string   `json:"author_display_name"`
	IsAuthor   bool      `json:"is_author"`
}

// CommentList is one page of a post's comments, newest first.
type CommentList struct {
	Comments   []Comment `json:"comments"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	HasMore    bool      `json:"has_more"`
}

// NewComment is the create body.
type NewComment struct {
	PostID  int64  `json:"post_id"`
	Content string `json:"content"`
}

// LikeStatus collapses the like relation to a count and a viewer flag.
type LikeStatus struct {
	PostID    int64  `json:"post_id"`
	IsLiked   bool   `json:"is_liked"`
	LikeCount int    `json:"like_count"`
	Message   string `json:"message,omitempty"`
}

// ChatRoom is a community chat channel.
type ChatRoom struct {
	ID          int64     `json:"chat_id"`
	CommunityID int64     `json:"community_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewChatRoom is the create body.
type NewChatRoom struct {
	Title       string `json:"title"`
	CommunityID int64  `json:"community_id"`
}

// MessageType distinguishes plain text from image-URL messages.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// ChatMessage is one message in a room.
type ChatMessage struct {
	ID         int64       `json:"msg_id"`
	ChatID     int64       `json:"chat_id"`
	SenderID   *uuid.UUID  `json:"sender_id"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	SentAt     time.Time   `json:"sent_at"`
	SenderName *string     `json:"sender_display_name"`
	IsSender   bool        `json:"is_sender"`
}

// MessageList is one page of a room's messages.
type MessageList struct {
	Messages   []ChatMessage `json:"messages"`
	TotalCount int           `json:"total_count"`
	ChatID     int64         `json:"chat_id"`
	HasMore    bool          `json:"has_more"`
}

// NewMessage is the send body.
type NewMessage struct {
	Content string      `json:"content"`
	ChatID  int64       `json:"chat_id"`
	Type    MessageType `json:"type"`
}

// Profile is the viewer's own profile.
type Profile struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name"`
	Bio         *string   `json:"bio"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileUpdate is the PUT /users/profile body; nil clears the field.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}
