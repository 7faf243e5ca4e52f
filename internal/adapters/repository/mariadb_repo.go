// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
)

// Ensure MariaDBRepository implements the required interfaces
var (
	_ ports.WebhookRepository      = (*MariaDBRepository)(nil)
	_ ports.ActionConfigRepository = (*MariaDBRepository)(nil)
	_ ports.LogPurger              = (*MariaDBRepository)(nil)
)

// MariaDBRepository implements persistence operations for MariaDB
//
// Expected schema:
//
//	CREATE TABLE action_configs (
//	    agent_id VARCHAR(64) NOT NULL,
//	    action_id VARCHAR(64) NOT NULL,
//	    module VARCHAR(64) NOT NULL,
//	    config JSON NOT NULL,
//	    updated_at DATETIME NOT NULL,
//	    PRIMARY KEY (agent_id, action_id)
//	);
//
//	CREATE TABLE webhook_logs (
//	    id BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    agent_id VARCHAR(64) NOT NULL,
//	    platform VARCHAR(32) NOT NULL,
//	    payload_json JSON NOT NULL,
//	    status VARCHAR(16) NOT NULL,
//	    error_log TEXT NULL,
//	    created_at DATETIME NOT NULL
//	);
type MariaDBRepository struct {
	db *sql.DB
}

// NewMariaDBRepository creates a new MariaDB repository instance
func NewMariaDBRepository(db *sql.DB) *MariaDBRepository {
	return &MariaDBRepository{
		db: db,
	}
}

// ============================================================================
// WebhookRepository Implementation
// ============================================================================

// SaveLog persists a webhook event to the audit log
func (r *MariaDBRepository) SaveLog(ctx context.Context, log *domain.WebhookLog) (int64, error) {
	query := `
		INSERT INTO webhook_logs (agent_id, platform, payload_json, status, error_log, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		log.AgentID,
		log.Platform,
		[]byte(log.PayloadJSON),
		log.Status,
		log.ErrorLog,
		log.CreatedAt,
	)
	if err != nil {
		slog.Error("Failed to save webhook log",
			"error", err,
			"agent_id", log.AgentID,
			"platform", log.Platform,
		)
		return 0, fmt.Errorf("save webhook log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	slog.Debug("Webhook log saved",
		"webhook_id", id,
		"platform", log.Platform,
		"status", log.Status,
	)

	return id, nil
}

// UpdateStatus updates the processing status of a webhook log
func (r *MariaDBRepository) UpdateStatus(ctx context.Context, id int64, status string, errorLog *string) error {
	query := `
		UPDATE webhook_logs
		SET status = ?, error_log = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, errorLog, id)
	if err != nil {
		slog.Error("Failed to update webhook status",
			"error", err,
			"webhook_id", id,
			"status", status,
		)
		return fmt.Errorf("update webhook status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		slog.Warn("No webhook log found for status update",
			"webhook_id", id,
		)
	}

	return nil
}

// PurgeLogs deletes processed audit records created before cutoff, at most limit rows
func (r *MariaDBRepository) PurgeLogs(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM webhook_logs
		WHERE status = ?
		AND created_at < ?
		LIMIT ?
	`

	result, err := r.db.ExecContext(ctx, query, domain.WebhookStatusProcessed, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge webhook logs: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// ============================================================================
// ActionConfigRepository Implementation
// ============================================================================

// GetActionConfig loads the config of a single agent action
func (r *MariaDBRepository) GetActionConfig(ctx context.Context, agentID, actionID string) (*domain.ActionConfig, error) {
	query := `
		SELECT agent_id, action_id, module, config, updated_at
		FROM action_configs
		WHERE agent_id = ? AND action_id = ?
	`

	return r.scanActionConfig(r.db.QueryRowContext(ctx, query, agentID, actionID), agentID, actionID)
}

// FindByModule returns the most recently updated action of the agent backed by module
func (r *MariaDBRepository) FindByModule(ctx context.Context, agentID, module string) (*domain.ActionConfig, error) {
	query := `
		SELECT agent_id, action_id, module, config, updated_at
		FROM action_configs
		WHERE agent_id = ? AND module = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`

	return r.scanActionConfig(r.db.QueryRowContext(ctx, query, agentID, module), agentID, module)
}

func (r *MariaDBRepository) scanActionConfig(row *sql.Row, agentID, key string) (*domain.ActionConfig, error) {
	var (
		cfg     domain.ActionConfig
		rawJSON []byte
	)
	err := row.Scan(&cfg.AgentID, &cfg.ActionID, &cfg.Module, &rawJSON, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to load action config",
			"error", err,
			"agent_id", agentID,
			"key", key,
		)
		return nil, fmt.Errorf("load action config: %w", err)
	}

	if err := json.Unmarshal(rawJSON, &cfg.Config); err != nil {
		return nil, fmt.Errorf("decode action config %s/%s: %w", cfg.AgentID, cfg.ActionID, err)
	}
	return &cfg, nil
}

// SaveActionConfig inserts or replaces an action config
func (r *MariaDBRepository) SaveActionConfig(ctx context.Context, cfg *domain.ActionConfig) error {
	rawJSON, err := json.Marshal(cfg.Config)
	if err != nil {
		return fmt.Errorf("encode action config: %w", err)
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO action_configs (agent_id, action_id, module, config, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			module = VALUES(module),
			config = VALUES(config),
			updated_at = VALUES(updated_at)
	`

	_, err = r.db.ExecContext(ctx, query,
		cfg.AgentID,
		cfg.ActionID,
		cfg.Module,
		rawJSON,
		cfg.UpdatedAt,
	)
	if err != nil {
		slog.Error("Failed to save action config",
			"error", err,
			"agent_id", cfg.AgentID,
			"action_id", cfg.ActionID,
		)
		return fmt.Errorf("save action config: %w", err)
	}

	slog.Info("Action config saved",
		"agent_id", cfg.AgentID,
		"action_id", cfg.ActionID,
		"module", cfg.Module,
	)
	return nil
}
