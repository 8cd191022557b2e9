package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/service"
	"github.com/BuzzLyutic/task-prioritizer/pkg/respond"
)

const prioritiesUpdated = "Priorities updated successfully"

type PriorityHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewPriorityHandler(srv *service.TaskService, logger *zap.Logger) *PriorityHandler {
	return &PriorityHandler{
		service: srv,
		logger:  logger,
	}
}

type rulesRequest struct {
	Rules *string `json:"rules"`
}

type rulesResponse struct {
	Rules []string `json:"rules"`
}

func (h *PriorityHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.GetRules(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, rulesResponse{Rules: rules})
}

// SetRules replaces the rule set and reranks. Ranking failures do not change
// the response.
func (h *PriorityHandler) SetRules(w http.ResponseWriter, r *http.Request) {
	var req rulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Rules == nil {
		respond.Error(w, r, http.StatusBadRequest, "rules is required")
		return
	}

	if err := h.service.SetRules(r.Context(), *req.Rules); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respond.Message(w, r, http.StatusOK, prioritiesUpdated)
}

func (h *PriorityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.service.Refresh(r.Context())
	respond.Message(w, r, http.StatusOK, prioritiesUpdated)
}
