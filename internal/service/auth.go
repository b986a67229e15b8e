// Package service holds one client per backend resource family. Every call
// validates its input locally, issues a single HTTP request and returns the
// decoded body or a normalized error.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/agora/internal/apiclient"
	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
	"go.uber.org/zap"
)

// TokenKeeper is the writable side of the session.
type TokenKeeper interface {
	SetToken(tok string) error
	Clear() error
}

// AuthService defines login, signup and logout.
type AuthService interface {
	// Login exchanges credentials for a session and stores its access token.
	Login(ctx context.Context, email, password string) (model.Session, error)
	// Signup creates an account. It does not log in.
	Signup(ctx context.Context, email, password, username string) (model.SignupResponse, error)
	// Logout clears the local token no matter what the server answers.
	Logout(ctx context.Context) error
}

type AuthServiceImpl struct {
	api    *apiclient.Client
	tokens TokenKeeper
	log    *zap.Logger
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService over the shared client and session.
func NewAuthService(api *apiclient.Client, tokens TokenKeeper, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{api: api, tokens: tokens, log: log}
}

func checkCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errs.Invalid("email", "is required")
	}
	if password == "" {
		return "", errs.Invalid("password", "is required")
	}
	return email, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (model.Session, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return model.Session{}, err
	}

	var resp model.LoginResponse
	if err := s.api.Post(ctx, "/auth/login", model.Credentials{Email: email, Password: password}, &resp); err != nil {
		return model.Session{}, err
	}
	if resp.Session.AccessToken == "" {
		return model.Session{}, errors.New("login: response carries no access token")
	}
	if err := s.tokens.SetToken(resp.Session.AccessToken); err != nil {
		return model.Session{}, fmt.Errorf("store token: %w", err)
	}
	s.log.Info("logged in", zap.String("user_id", resp.Session.User.ID.String()))
	return resp.Session, nil
}

func (s *AuthServiceImpl) Signup(ctx context.Context, email, password, username string) (model.SignupResponse, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return model.SignupResponse{}, err
	}
	body := model.Credentials{Email: email, Password: password, Username: strings.TrimSpace(username)}

	var resp model.SignupResponse
	if err := s.api.Post(ctx, "/auth/signup", body, &resp); err != nil {
		return model.SignupResponse{}, err
	}
	return resp, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	remote := s.api.Post(ctx, "/auth/logout", nil, nil)
	if remote != nil {
		s.log.Warn("remote logout failed", zap.Error(remote))
	}
	if err := s.tokens.Clear(); err != nil {
		return errors.Join(remote, fmt.Errorf("clear token: %w", err))
	}
	return remote
}
