package captcha

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/pkg/response"
)

// Handler serves captcha images.
type Handler struct {
	issuer *Issuer
	logger *zap.SugaredLogger
}

func NewHandler(issuer *Issuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{issuer: issuer, logger: logger}
}

// Make handles GET /make_captcha?user=<name>.
func (h *Handler) Make(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		response.Error(w, http.StatusBadRequest, "user required")
		return
	}
	_, img, err := h.issuer.Issue(user)
	if err != nil {
		h.logger.Errorw("issue captcha failed", "user", user, "err", err)
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
