package handler

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/service"
	"github.com/BuzzLyutic/task-prioritizer/pkg/respond"
)

const AdminTokenHeader = "X-Admin-Token"

type AdminHandler struct {
	service *service.TaskService
	token   string
	logger  *zap.Logger
}

func NewAdminHandler(srv *service.TaskService, token string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service: srv,
		token:   token,
		logger:  logger,
	}
}

// RequireToken rejects requests whose admin header does not match the
// configured token. An empty configured token rejects everything.
func (h *AdminHandler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(AdminTokenHeader)
		if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			h.logger.Warn("admin request rejected", zap.String("remote", r.RemoteAddr))
			handleError(w, r, h.logger, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.DeleteAll(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]int64{"deleted": n})
}
