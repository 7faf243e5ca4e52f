// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"errors"
	"time"

	"facebook-action/internal/core/domain"
)

// ErrNotFound is returned by repositories when a record does not exist
var ErrNotFound = errors.New("not found")

// FileStorage is the storage collaborator used to persist downloaded media
// The gateway generates the path; the storage decides where bytes live
type FileStorage interface {
	// Save stores data under path, replacing any previous content
	Save(path string, data []byte) error

	// PublicURL returns the web-accessible URL of a stored path
	PublicURL(path string) string
}

// FileReader reads back stored files so the host can serve public URLs
type FileReader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// ActionExecutor is the host's action-execution bridge
type ActionExecutor interface {
	Execute(ctx context.Context, agentID, module, action string, args map[string]any) (any, error)
}

// ActionConfigRepository persists operator-edited action configuration
type ActionConfigRepository interface {
	// GetActionConfig returns the config of an agent's action, ErrNotFound if missing
	GetActionConfig(ctx context.Context, agentID, actionID string) (*domain.ActionConfig, error)

	// FindByModule returns the first action of the agent backed by module
	FindByModule(ctx context.Context, agentID, module string) (*domain.ActionConfig, error)

	// SaveActionConfig inserts or replaces an action config
	SaveActionConfig(ctx context.Context, cfg *domain.ActionConfig) error
}

// WebhookRepository handles persistence of webhook audit logs
type WebhookRepository interface {
	// SaveLog persists a webhook event and returns its id
	SaveLog(ctx context.Context, log *domain.WebhookLog) (int64, error)

	// UpdateStatus updates the processing status of a webhook log
	UpdateStatus(ctx context.Context, id int64, status string, errorLog *string) error
}

// LogPurger removes old processed audit records
type LogPurger interface {
	PurgeLogs(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// MessageHandler receives normalized inbound messages (agent business logic)
type MessageHandler interface {
	HandleMessage(ctx context.Context, agentID string, msg *domain.InboundMessage) error
}

// EventPublisher fans normalized messages out to live viewers
type EventPublisher interface {
	Publish(event any)
}
