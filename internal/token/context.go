package token

import (
	"context"

	"github.com/ovaphlow/emberctl/internal/token/entity"
)

type ctxKey struct{}

// WithToken stores a validated token on ctx.
func WithToken(ctx context.Context, t *entity.LoginToken) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the token stored by WithToken, if any.
func FromContext(ctx context.Context) (*entity.LoginToken, bool) {
	t, ok := ctx.Value(ctxKey{}).(*entity.LoginToken)
	return t, ok && t != nil
}
