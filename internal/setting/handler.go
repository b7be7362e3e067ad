package setting

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/pkg/response"
)

// Handler contains dependencies for handling setting endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List returns every config entry as a JSON object keyed by setting key.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Errorw("list settings failed", "err", err)
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make(map[string]json.RawMessage, len(items))
	for _, it := range items {
		out[it.Key] = it.Value
	}
	response.OK(w, "ok", out)
}
