package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/internal/oplog"
	"github.com/ovaphlow/emberctl/internal/token"
	"github.com/ovaphlow/emberctl/pkg/database"
	"github.com/ovaphlow/emberctl/pkg/response"
)

// ErrPasswordIncorrect is returned when the current password does not match.
var ErrPasswordIncorrect = errors.New("password incorrect")

// Handler exposes HTTP endpoints for the signed-in user.
type Handler struct {
	db     *sqlx.DB
	svc    *UserService
	audit  *oplog.Recorder
	logger *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, svc *UserService, audit *oplog.Recorder, logger *zap.SugaredLogger) *Handler {
	return &Handler{db: db, svc: svc, audit: audit, logger: logger}
}

// ChangePasswordRequest is the POST /password body.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword replaces the caller's password. The route requires a
// bearer token; the audit entry commits with the new hash.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	t, ok := token.FromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid change password payload", "err", err)
		response.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.NewPassword == "" {
		response.Error(w, http.StatusBadRequest, "new password required")
		return
	}

	err := h.changePassword(r.Context(), t.User, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		response.OK(w, "password changed", nil)
	case errors.Is(err, ErrPasswordIncorrect):
		response.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUserNotFound):
		response.Error(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Errorw("change password failed", "user", t.User, "err", err)
		response.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) changePassword(ctx context.Context, name, oldPw, newPw string) error {
	u, err := h.svc.Lookup(ctx, name)
	if err != nil {
		return err
	}
	if !h.svc.VerifyPassword(ctx, u, oldPw) {
		return ErrPasswordIncorrect
	}
	return database.WithTx(ctx, h.db, nil, func(ctx context.Context, tx database.DBTX) error {
		if err := h.svc.UpdatePasswordWith(ctx, tx, name, newPw); err != nil {
			return err
		}
		_, err := h.audit.LogWith(ctx, tx, name, oplog.ModuleUser, oplog.ActionChangePassword, "password changed")
		return err
	})
}
