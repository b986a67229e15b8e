package service

import (
	"context"
	"net/url"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
)

// ChatService covers rooms and messages.
type ChatService interface {
	CreateRoom(ctx context.Context, communityID int64, title string) (model.ChatRoom, error)
	ListRooms(ctx context.Context, communityID int64) ([]model.ChatRoom, error)
	// Send posts a text message.
	Send(ctx context.Context, chatID int64, content string) (model.ChatMessage, error)
	// SendImage posts an image-URL message.
	SendImage(ctx context.Context, chatID int64, imageURL string) (model.ChatMessage, error)
	// ListMessages returns one page, oldest first. skip and limit are always sent.
	ListMessages(ctx context.Context, chatID int64, p model.Page) (model.MessageList, error)
}

type ChatServiceImpl struct {
	api      *apiclient.Client
	pageSize int
}

var _ ChatService = (*ChatServiceImpl)(nil)

// NewChatService constructs ChatService; pageSize <= 0 means 50.
func NewChatService(api *apiclient.Client, pageSize int) *ChatServiceImpl {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &ChatServiceImpl{api: api, pageSize: pageSize}
}

func (s *ChatServiceImpl) CreateRoom(ctx context.Context, communityID int64, title string) (model.ChatRoom, error) {
	if err := requireID("community_id", communityID); err != nil {
		return model.ChatRoom{}, err
	}
	title, err := requireText("title", title, MaxRoomTitle)
	if err != nil {
		return model.ChatRoom{}, err
	}
	var out model.ChatRoom
	err = s.api.Post(ctx, "/chat/rooms", model.NewChatRoom{Title: title, CommunityID: communityID}, &out)
	return out, err
}

func (s *ChatServiceImpl) ListRooms(ctx context.Context, communityID int64) ([]model.ChatRoom, error) {
	if err := requireID("community_id", communityID); err != nil {
		return nil, err
	}
	var out []model.ChatRoom
	if err := s.api.Get(ctx, idPath("/chat/rooms/community/", communityID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ChatServiceImpl) Send(ctx context.Context, chatID int64, content string) (model.ChatMessage, error) {
	return s.send(ctx, chatID, content, model.MessageText)
}

func (s *ChatServiceImpl) SendImage(ctx context.Context, chatID int64, imageURL string) (model.ChatMessage, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.ChatMessage{}, errs.Invalid("content", "must be an http(s) image URL")
	}
	return s.send(ctx, chatID, imageURL, model.MessageImage)
}

func (s *ChatServiceImpl) send(ctx context.Context, chatID int64, content string, typ model.MessageType) (model.ChatMessage, error) {
	if err := requireID("chat_id", chatID); err != nil {
		return model.ChatMessage{}, err
	}
	content, err := requireText("content", content, MaxMessage)
	if err != nil {
		return model.ChatMessage{}, err
	}
	var out model.ChatMessage
	err = s.api.Post(ctx, "/chat/messages", model.NewMessage{Content: content, ChatID: chatID, Type: typ}, &out)
	return out, err
}

func (s *ChatServiceImpl) ListMessages(ctx context.Context, chatID int64, p model.Page) (model.MessageList, error) {
	if err := requireID("chat_id", chatID); err != nil {
		return model.MessageList{}, err
	}
	var out model.MessageList
	err := s.api.Get(ctx, idPath("/chat/messages/", chatID), pageQuery(p, s.pageSize, true), &out)
	return out, err
}
