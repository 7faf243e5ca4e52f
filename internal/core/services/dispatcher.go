// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"facebook-action/internal/adapters/gateway"
	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
)

// FacebookModule is the action module name backed by the Graph API client
const FacebookModule = "facebook"

// FacebookAPI is the slice of the Graph API client the host services depend on
type FacebookAPI interface {
	ParseVerificationQuery(query url.Values) gateway.VerificationResult
	ParseInboundBody(body []byte) (*domain.InboundMessage, error)
	RegisterSession(webhookURL string) domain.GraphResponse
	SendTextMessage(recipientID, message string) domain.GraphResponse
	SendMedia(recipientID, mediaURL, mediaType string) domain.GraphResponse
	PostMessageToPage(message string) domain.GraphResponse
	ReplyToComment(commentID, message string) domain.GraphResponse
	DownloadFile(fileURL string) (string, bool)
}

// ClientProvider builds a client for one agent's configuration
type ClientProvider func(cfg domain.ClientConfig) FacebookAPI

// InboundNotification is what live viewers receive for every normalized message
type InboundNotification struct {
	Type       string                 `json:"type"`
	AgentID    string                 `json:"agent_id"`
	WebhookID  int64                  `json:"webhook_id,omitempty"`
	Kind       string                 `json:"kind"`
	Message    *domain.InboundMessage `json:"message"`
	ReceivedAt time.Time              `json:"received_at"`
}

// Dispatcher orchestrates webhook processing workflow
// Fire & Forget: the HTTP handler acknowledges first and dispatches afterwards
type Dispatcher struct {
	configs     ports.ActionConfigRepository
	webhookRepo ports.WebhookRepository // optional audit log
	publisher   ports.EventPublisher    // optional live feed
	handler     ports.MessageHandler
	clients     ClientProvider
	intake      *Intake
}

// NewDispatcher creates a new dispatcher instance with dependencies injected
// webhookRepo and publisher may be nil
func NewDispatcher(
	configs ports.ActionConfigRepository,
	webhookRepo ports.WebhookRepository,
	publisher ports.EventPublisher,
	handler ports.MessageHandler,
	clients ClientProvider,
	intake *Intake,
) *Dispatcher {
	if intake == nil {
		intake = NewIntake()
	}
	return &Dispatcher{
		configs:     configs,
		webhookRepo: webhookRepo,
		publisher:   publisher,
		handler:     handler,
		clients:     clients,
		intake:      intake,
	}
}

// ClientFor returns a client configured for the agent's facebook action
func (d *Dispatcher) ClientFor(ctx context.Context, agentID string) (FacebookAPI, domain.ClientConfig, error) {
	action, err := d.configs.FindByModule(ctx, agentID, FacebookModule)
	if err != nil {
		return nil, domain.ClientConfig{}, fmt.Errorf("load facebook action for agent %s: %w", agentID, err)
	}
	cfg := action.Config.WithDefaults()
	return d.clients(cfg), cfg, nil
}

// ProcessWebhook normalizes one webhook delivery and hands it to the agent
func (d *Dispatcher) ProcessWebhook(ctx context.Context, agentID string, payload []byte) (err error) {
	// ========================================================================
	// Panic Recovery: a bad payload must never take the process down
	// ========================================================================
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in ProcessWebhook",
				"panic", r,
				"agent_id", agentID,
			)
			err = fmt.Errorf("panic while processing webhook: %v", r)
		}
	}()

	client, _, err := d.ClientFor(ctx, agentID)
	if err != nil {
		return err
	}

	// ========================================================================
	// Step 1: Audit log
	// ========================================================================
	webhookID := d.saveLog(ctx, agentID, payload)

	// ========================================================================
	// Step 2: Normalize
	// ========================================================================
	msg, err := client.ParseInboundBody(payload)
	if err != nil {
		d.updateStatus(ctx, webhookID, domain.WebhookStatusFailed, err)
		return fmt.Errorf("parse inbound message: %w", err)
	}

	// ========================================================================
	// Step 3: Live feed
	// ========================================================================
	if d.publisher != nil {
		d.publisher.Publish(InboundNotification{
			Type:       "inbound_message",
			AgentID:    agentID,
			WebhookID:  webhookID,
			Kind:       msg.EventKind(),
			Message:    msg,
			ReceivedAt: time.Now(),
		})
	}

	// ========================================================================
	// Step 4: Agent business logic (skipped while intake is paused)
	// ========================================================================
	if d.intake.IsPaused() {
		slog.Warn("Intake paused, message not forwarded",
			"agent_id", agentID,
			"message_type", msg.MessageType,
		)
		d.updateStatus(ctx, webhookID, domain.WebhookStatusProcessed, nil)
		return nil
	}

	if err := d.handler.HandleMessage(ctx, agentID, msg); err != nil {
		d.updateStatus(ctx, webhookID, domain.WebhookStatusFailed, err)
		return fmt.Errorf("handle message: %w", err)
	}

	d.updateStatus(ctx, webhookID, domain.WebhookStatusProcessed, nil)

	slog.Info("Webhook processed",
		"agent_id", agentID,
		"kind", msg.EventKind(),
		"message_type", msg.MessageType,
		"sender_id", msg.SenderID,
	)
	return nil
}

// saveLog returns 0 when no repository is configured or the insert failed
func (d *Dispatcher) saveLog(ctx context.Context, agentID string, payload []byte) int64 {
	if d.webhookRepo == nil {
		return 0
	}

	// payload_json is a JSON column; keep invalid bodies auditable
	raw := json.RawMessage(payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(payload))
		raw = quoted
	}

	id, err := d.webhookRepo.SaveLog(ctx, &domain.WebhookLog{
		AgentID:     agentID,
		Platform:    FacebookModule,
		PayloadJSON: raw,
		Status:      domain.WebhookStatusPending,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		slog.Error("Failed to save webhook log", "error", err, "agent_id", agentID)
		return 0
	}
	return id
}

func (d *Dispatcher) updateStatus(ctx context.Context, id int64, status string, cause error) {
	if d.webhookRepo == nil || id == 0 {
		return
	}

	var errorLog *string
	if cause != nil {
		msg := cause.Error()
		errorLog = &msg
	}
	if err := d.webhookRepo.UpdateStatus(ctx, id, status, errorLog); err != nil {
		slog.Error("Failed to update webhook status",
			"error", err,
			"webhook_id", id,
			"status", status,
		)
	}
}

// ============================================================================
// Default message handler
// ============================================================================

// LoggingHandler is the MessageHandler used when no agent runtime is attached
type LoggingHandler struct{}

func (LoggingHandler) HandleMessage(_ context.Context, agentID string, msg *domain.InboundMessage) error {
	if msg == nil {
		return errors.New("nil message")
	}

	preview := msg.Message
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	slog.Info("Inbound message",
		"agent_id", agentID,
		"message_type", msg.MessageType,
		"sender_id", msg.SenderID,
		"page_id", msg.PageID,
		"content_preview", preview,
		"attachments", len(msg.Attachments),
	)
	return nil
}
