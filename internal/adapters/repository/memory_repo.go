package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
)

// Ensure MemoryRepository implements ActionConfigRepository
var _ ports.ActionConfigRepository = (*MemoryRepository)(nil)

// MemoryRepository keeps action configs in process memory
// Used when no database is configured; seeded from the actions YAML file
type MemoryRepository struct {
	mu      sync.RWMutex
	configs map[string]domain.ActionConfig
}

// NewMemoryRepository creates a repository seeded with configs
func NewMemoryRepository(seed []domain.ActionConfig) *MemoryRepository {
	r := &MemoryRepository{configs: make(map[string]domain.ActionConfig, len(seed))}
	for _, cfg := range seed {
		if cfg.UpdatedAt.IsZero() {
			cfg.UpdatedAt = time.Now()
		}
		r.configs[configKey(cfg.AgentID, cfg.ActionID)] = cfg
	}
	return r
}

func configKey(agentID, actionID string) string {
	return agentID + "/" + actionID
}

func (r *MemoryRepository) GetActionConfig(_ context.Context, agentID, actionID string) (*domain.ActionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[configKey(agentID, actionID)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &cfg, nil
}

// FindByModule returns the most recently updated matching action
// Ties are broken by action id so the result is stable
func (r *MemoryRepository) FindByModule(_ context.Context, agentID, module string) (*domain.ActionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []domain.ActionConfig
	for _, cfg := range r.configs {
		if cfg.AgentID == agentID && cfg.Module == module {
			matches = append(matches, cfg)
		}
	}
	if len(matches) == 0 {
		return nil, ports.ErrNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ActionID < matches[j].ActionID
	})
	return &matches[0], nil
}

func (r *MemoryRepository) SaveActionConfig(_ context.Context, cfg *domain.ActionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now()
	}
	r.configs[configKey(cfg.AgentID, cfg.ActionID)] = *cfg
	return nil
}
