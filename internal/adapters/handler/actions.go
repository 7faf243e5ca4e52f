package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"facebook-action/internal/adapters/gateway"
	"facebook-action/internal/core/ports"
	"facebook-action/internal/core/services"
)

// ActionHandler exposes the action bridge over JSON
type ActionHandler struct {
	executor ports.ActionExecutor
}

func NewActionHandler(executor ports.ActionExecutor) *ActionHandler {
	return &ActionHandler{executor: executor}
}

// Execute runs one module action with the JSON body as arguments
// POST /api/agents/{agentID}/actions/{module}/{action}
func (h *ActionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	module := chi.URLParam(r, "module")
	action := chi.URLParam(r, "action")

	args := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeAPI(w, r, BadRequestResponse("invalid JSON body"))
		return
	}

	result, err := h.executor.Execute(r.Context(), agentID, module, action, args)
	if err != nil {
		status, message := actionErrorStatus(err)
		slog.Warn("Action request failed",
			"error", err,
			"agent_id", agentID,
			"module", module,
			"action", action,
			"status", status,
		)
		writeAPI(w, r, NewErrorResponse(status, message))
		return
	}

	writeAPI(w, r, NewSuccessResponse(result))
}

// actionErrorStatus maps bridge and Graph errors to HTTP status codes
func actionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUnknownAction), errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrInvalidArgs):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, gateway.ErrTokenExpired):
		return http.StatusUnauthorized, "Page access token expired. Reconnect the page in the panel."
	case errors.Is(err, gateway.ErrRateLimited):
		return http.StatusTooManyRequests, "Facebook rate limit reached. Retry in a few seconds."
	case errors.Is(err, gateway.ErrPermissionDenied):
		return http.StatusForbidden, "The page is missing the permission for this action."
	default:
		return http.StatusBadGateway, err.Error()
	}
}
