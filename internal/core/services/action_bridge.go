package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"facebook-action/internal/adapters/gateway"
	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
)

// ErrUnknownAction is returned when no handler is registered for module/action
var ErrUnknownAction = errors.New("unknown action")

// Ensure ActionBridge implements ActionExecutor
var _ ports.ActionExecutor = (*ActionBridge)(nil)

// ActionFunc executes one action on behalf of an agent
type ActionFunc func(ctx context.Context, agentID string, args map[string]any) (any, error)

// ActionBridge routes action invocations to registered module handlers
type ActionBridge struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

func NewActionBridge() *ActionBridge {
	return &ActionBridge{actions: make(map[string]ActionFunc)}
}

// Register binds fn to module.action, replacing any previous binding
func (b *ActionBridge) Register(module, action string, fn ActionFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions[module+"."+action] = fn
}

// Execute runs module.action for agentID
func (b *ActionBridge) Execute(ctx context.Context, agentID, module, action string, args map[string]any) (any, error) {
	b.mu.RLock()
	fn, ok := b.actions[module+"."+action]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAction, module, action)
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := fn(ctx, agentID, args)
	if err != nil {
		slog.Error("Action failed",
			"error", err,
			"agent_id", agentID,
			"module", module,
			"action", action,
		)
		return nil, err
	}

	slog.Info("Action executed",
		"agent_id", agentID,
		"module", module,
		"action", action,
	)
	return result, nil
}

// ============================================================================
// Facebook module
// ============================================================================

// FacebookActions exposes Graph API client operations through the bridge
type FacebookActions struct {
	Dispatcher    *Dispatcher
	PublicBaseURL string
}

// Register binds every facebook action on bridge
func (f *FacebookActions) Register(bridge *ActionBridge) {
	bridge.Register(FacebookModule, "register_session", f.RegisterSession)
	bridge.Register(FacebookModule, "send_text_message", f.SendTextMessage)
	bridge.Register(FacebookModule, "send_media", f.SendMedia)
	bridge.Register(FacebookModule, "post_message_to_page", f.PostMessageToPage)
	bridge.Register(FacebookModule, "reply_to_comment", f.ReplyToComment)
	bridge.Register(FacebookModule, "download_file", f.DownloadFile)
}

// WebhookURL is where Facebook should deliver events for agentID
func (f *FacebookActions) WebhookURL(agentID string) string {
	return strings.TrimRight(f.PublicBaseURL, "/") + "/webhook/facebook/" + agentID
}

// RegisterSession subscribes the agent's app to page events
// args["webhook_url"] overrides the derived callback URL
func (f *FacebookActions) RegisterSession(ctx context.Context, agentID string, args map[string]any) (any, error) {
	client, _, err := f.Dispatcher.ClientFor(ctx, agentID)
	if err != nil {
		return nil, err
	}

	webhookURL, _ := args["webhook_url"].(string)
	if webhookURL == "" {
		webhookURL = f.WebhookURL(agentID)
	}

	return graphResult("register session", agentID, client.RegisterSession(webhookURL))
}

func (f *FacebookActions) SendTextMessage(ctx context.Context, agentID string, args map[string]any) (any, error) {
	recipientID, message, err := requiredArgs(args, "recipient_id", "message")
	if err != nil {
		return nil, err
	}
	client, _, err := f.Dispatcher.ClientFor(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return graphResult("send text message", agentID, client.SendTextMessage(recipientID, message))
}

// SendMedia defaults media_type to image
func (f *FacebookActions) SendMedia(ctx context.Context, agentID string, args map[string]any) (any, error) {
	recipientID, mediaURL, err := requiredArgs(args, "recipient_id", "media_url")
	if err != nil {
		return nil, err
	}
	mediaType, _ := args["media_type"].(string)
	if mediaType == "" {
		mediaType = "image"
	}
	client, _, err := f.Dispatcher.ClientFor(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return graphResult("send media", agentID, client.SendMedia(recipientID, mediaURL, mediaType))
}

func (f *FacebookActions) PostMessageToPage(ctx context.Context, agentID string, args map[string]any) (any, error) {
	message, _, err := requiredArgs(args, "message")
	if err != nil {
		return nil, err
	}
	client, _, err := f.Dispatcher.ClientFor(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return graphResult("post message to page", agentID, client.PostMessageToPage(message))
}

func (f *FacebookActions) ReplyToComment(ctx context.Context, agentID string, args map[string]any) (any, error) {
	commentID, message, err := requiredArgs(args, "comment_id", "message")
	if err != nil {
		return nil, err
	}
	client, _, err := f.Dispatcher.ClientFor(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return graphResult("reply to comment", agentID, client.ReplyToComment(commentID, message))
}

// DownloadFile mirrors a remote file into storage and returns its public URL
func (f *FacebookActions) DownloadFile(ctx context.Context, agentID string, args map[string]any) (any, error) {
	fileURL, _, err := requiredArgs(args, "url")
	if err != nil {
		return nil, err
	}
	client, _, err := f.Dispatcher.ClientFor(ctx, agentID)
	if err != nil {
		return nil, err
	}
	publicURL, ok := client.DownloadFile(fileURL)
	if !ok {
		return nil, fmt.Errorf("download file %s: %w", fileURL, ErrDownloadFailed)
	}
	return map[string]any{"url": publicURL}, nil
}

// ErrInvalidArgs is returned when an action is invoked without its required arguments
var ErrInvalidArgs = errors.New("invalid action arguments")

// ErrDownloadFailed is returned when a file could not be mirrored
var ErrDownloadFailed = errors.New("download failed")

// requiredArgs extracts up to two non-empty string arguments
func requiredArgs(args map[string]any, keys ...string) (string, string, error) {
	values := make([]string, 2)
	for i, key := range keys {
		v, _ := args[key].(string)
		if v == "" {
			return "", "", fmt.Errorf("%w: %s is required", ErrInvalidArgs, key)
		}
		values[i] = v
	}
	return values[0], values[1], nil
}

// graphResult turns an error envelope into a classified Go error
func graphResult(op, agentID string, resp domain.GraphResponse) (any, error) {
	if !resp.HasError() {
		return map[string]any(resp), nil
	}

	classified := gateway.ClassifyError(resp)
	slog.Warn("Graph API call rejected",
		"operation", op,
		"agent_id", agentID,
		"token_expired", errors.Is(classified, gateway.ErrTokenExpired),
		"rate_limited", errors.Is(classified, gateway.ErrRateLimited),
		"permission_denied", errors.Is(classified, gateway.ErrPermissionDenied),
	)
	return nil, fmt.Errorf("%s: %w", op, classified)
}
