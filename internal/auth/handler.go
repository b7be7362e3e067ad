package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/internal/token"
	"github.com/ovaphlow/emberctl/pkg/response"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// LoginRequest is the POST /login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Captcha  string `json:"captcha"`
}

// SessionView is returned on login and by GET /session.
type SessionView struct {
	Token    string    `json:"token,omitempty"`
	User     string    `json:"user"`
	ExpireAt time.Time `json:"expire_at"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		response.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	t, err := h.svc.Login(r.Context(), req.Username, req.Password, req.Captcha)
	if err != nil {
		if IsRejection(err) {
			h.logger.Debugw("login rejected", "user", req.Username, "reason", err)
			response.Error(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.Errorw("login failed", "user", req.Username, "err", err)
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, "login succeeded", SessionView{Token: t.Token, User: t.User, ExpireAt: t.ExpireAt})
}

// Session reports the caller's session. The route requires a bearer token.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	t, ok := token.FromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	response.OK(w, "ok", SessionView{User: t.User, ExpireAt: t.ExpireAt})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	t, ok := token.FromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), t); err != nil {
		h.logger.Errorw("logout failed", "user", t.User, "err", err)
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.OK(w, "logged out", nil)
}
