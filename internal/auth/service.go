// Package auth drives a login attempt through captcha, credential and
// token issuance checks, recording an audit entry for every outcome.
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/internal/captcha"
	"github.com/ovaphlow/emberctl/internal/oplog"
	"github.com/ovaphlow/emberctl/internal/token"
	tokenentity "github.com/ovaphlow/emberctl/internal/token/entity"
	"github.com/ovaphlow/emberctl/internal/user"
)

// Rejections. Their messages are returned to the client verbatim.
var (
	ErrCaptchaIncorrect  = errors.New("captcha incorrect")
	ErrUserNotFound      = errors.New("user not found")
	ErrPasswordIncorrect = errors.New("password incorrect")
)

// IsRejection reports whether err is a credential rejection rather than an
// internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCaptchaIncorrect) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPasswordIncorrect)
}

type Service struct {
	captcha *captcha.Issuer
	users   *user.UserService
	tokens  *token.Service
	audit   *oplog.Recorder
	logger  *zap.SugaredLogger
}

func NewService(c *captcha.Issuer, users *user.UserService, tokens *token.Service, audit *oplog.Recorder, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{captcha: c, users: users, tokens: tokens, audit: audit, logger: logger}
}

// Login checks the captcha, resolves the user and verifies the password, in
// that order, and mints a session token when all three pass. The captcha is
// consumed on match, so a failed password needs a fresh challenge.
func (s *Service) Login(ctx context.Context, username, password, code string) (*tokenentity.LoginToken, error) {
	if !s.captcha.Verify(username, code) {
		s.record(ctx, username, oplog.ActionLogin, "login rejected: captcha incorrect")
		return nil, ErrCaptchaIncorrect
	}

	u, err := s.users.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.record(ctx, username, oplog.ActionLogin, "login rejected: user not found")
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !s.users.VerifyPassword(ctx, u, password) {
		s.record(ctx, u.Name, oplog.ActionLogin, "login rejected: password incorrect")
		return nil, ErrPasswordIncorrect
	}

	s.record(ctx, u.Name, oplog.ActionLogin, "login succeeded")
	t, err := s.tokens.Issue(ctx, u.Name)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return t, nil
}

// Logout revokes the session token.
func (s *Service) Logout(ctx context.Context, t *tokenentity.LoginToken) error {
	if err := s.tokens.Revoke(ctx, t.Token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.record(ctx, t.User, oplog.ActionLogout, "logout")
	return nil
}

// record writes a login audit entry. A failed write is logged and does not
// change the outcome of the attempt.
func (s *Service) record(ctx context.Context, actor, action, detail string) {
	if _, err := s.audit.Log(ctx, actor, oplog.ModuleUser, action, detail); err != nil {
		s.logger.Warnw("audit write failed", "user", actor, "action", action, "err", err)
	}
}
