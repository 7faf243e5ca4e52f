package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"facebook-action/internal/core/ports"
	"facebook-action/internal/core/services"
)

// maxWebhookBody caps what Facebook may send in a single delivery
const maxWebhookBody = 1 << 20

// WebhookHandler handles Facebook webhook verification and events
// Facebook expects an answer within a few seconds, so events are processed after the 200
type WebhookHandler struct {
	dispatcher *services.Dispatcher

	// processTimeout bounds asynchronous processing of one delivery
	processTimeout time.Duration
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(dispatcher *services.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		dispatcher:     dispatcher,
		processTimeout: 2 * time.Minute,
	}
}

// ============================================================================
// GET /webhook/facebook/{agentID} - Webhook Verification
// ============================================================================

// HandleFacebookVerify answers the hub.* handshake with the agent's verify token
func (h *WebhookHandler) HandleFacebookVerify(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	client, _, err := h.dispatcher.ClientFor(r.Context(), agentID)
	if err != nil {
		h.writeConfigError(w, r, agentID, err)
		return
	}

	result := client.ParseVerificationQuery(r.URL.Query())
	switch {
	case result.Err != nil:
		writeJSON(w, http.StatusBadRequest, result.Body())
	case result.Accepted:
		slog.Info("Webhook verification successful", "agent_id", agentID)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(result.Challenge))
	default:
		slog.Warn("Webhook verification failed", "agent_id", agentID)
		writeJSON(w, result.Code, result.Body())
	}
}

// ============================================================================
// POST /webhook/facebook/{agentID} - Webhook Events
// ============================================================================

// HandleFacebookEvent validates the signature, acknowledges, then dispatches asynchronously
func (h *WebhookHandler) HandleFacebookEvent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Error("Failed to read webhook body", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	_, cfg, err := h.dispatcher.ClientFor(r.Context(), agentID)
	if err != nil {
		h.writeConfigError(w, r, agentID, err)
		return
	}

	// ========================================================================
	// Signature check: unsigned or mis-signed deliveries are never processed
	// ========================================================================
	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		slog.Warn("Webhook received without signature header", "agent_id", agentID)
		http.Error(w, "Forbidden - No signature", http.StatusForbidden)
		return
	}
	if cfg.AppSecret == "" {
		slog.Warn("Webhook signature cannot be validated without app_secret", "agent_id", agentID)
		http.Error(w, "Forbidden - Invalid signature", http.StatusForbidden)
		return
	}
	if !validateSignature(body, signature, cfg.AppSecret) {
		slog.Warn("Webhook signature validation failed", "agent_id", agentID)
		http.Error(w, "Forbidden - Invalid signature", http.StatusForbidden)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))

	// The request context ends with the response; processing gets its own
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("PANIC in webhook processing goroutine", "panic", rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), h.processTimeout)
		defer cancel()

		if err := h.dispatcher.ProcessWebhook(ctx, agentID, body); err != nil {
			slog.Error("Webhook processing failed", "error", err, "agent_id", agentID)
		}
	}()

	slog.Info("Webhook received and queued for processing",
		"agent_id", agentID,
		"content_length", len(body),
	)
}

func (h *WebhookHandler) writeConfigError(w http.ResponseWriter, r *http.Request, agentID string, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		slog.Warn("Webhook for unknown agent", "agent_id", agentID)
		writeAPI(w, r, NotFoundResponse("unknown agent"))
		return
	}
	slog.Error("Failed to load agent config", "error", err, "agent_id", agentID)
	writeAPI(w, r, InternalErrorResponse("failed to load agent config"))
}

// ============================================================================
// HMAC Signature Validation
// ============================================================================

// validateSignature checks the "sha256=<hex>" HMAC Facebook computes with the app secret
// Ref: https://developers.facebook.com/docs/messenger-platform/webhooks#security
func validateSignature(payload []byte, signatureHeader, appSecret string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		slog.Warn("Invalid signature format - missing sha256= prefix")
		return false
	}
	expected := strings.TrimPrefix(signatureHeader, prefix)

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(computed), []byte(strings.ToLower(expected)))
}
