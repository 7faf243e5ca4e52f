package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"facebook-action/internal/adapters/gateway"
	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
)

func newFacebookBridge(f *dispatcherFixture) *ActionBridge {
	bridge := NewActionBridge()
	actions := &FacebookActions{Dispatcher: f.dispatcher, PublicBaseURL: "https://bot.example.com/"}
	actions.Register(bridge)
	return bridge
}

func TestActionBridge_UnknownAction(t *testing.T) {
	bridge := NewActionBridge()

	result, err := bridge.Execute(context.Background(), "agent-1", "facebook", "fly", nil)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestActionBridge_PassesArgs(t *testing.T) {
	bridge := NewActionBridge()
	bridge.Register("echo", "say", func(_ context.Context, agentID string, args map[string]any) (any, error) {
		return agentID + ":" + args["text"].(string), nil
	})

	result, err := bridge.Execute(context.Background(), "a", "echo", "say", map[string]any{"text": "hi"})

	require.NoError(t, err)
	assert.Equal(t, "a:hi", result)
}

func TestRegisterSession_DerivesWebhookURL(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.client.On("RegisterSession", "https://bot.example.com/webhook/facebook/agent-1").
		Return(domain.GraphResponse{"success": true})

	result, err := newFacebookBridge(f).Execute(ctx, "agent-1", FacebookModule, "register_session", nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true}, result)
	f.client.AssertExpectations(t)
}

func TestRegisterSession_ExplicitWebhookURL(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.client.On("RegisterSession", "https://tunnel.example/hook").Return(domain.GraphResponse{"success": true})

	_, err := newFacebookBridge(f).Execute(ctx, "agent-1", FacebookModule, "register_session",
		map[string]any{"webhook_url": "https://tunnel.example/hook"})

	require.NoError(t, err)
	f.client.AssertExpectations(t)
}

func TestRegisterSession_GraphErrorBecomesError(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	var details map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"message":"Invalid OAuth access token.","code":190}}`), &details))

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.client.On("RegisterSession", mock.Anything).
		Return(domain.ErrorResponseWithDetails("400 Client Error: Bad Request for url: x", details))

	result, err := newFacebookBridge(f).Execute(ctx, "agent-1", FacebookModule, "register_session", nil)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, gateway.ErrTokenExpired)
}

func TestRegisterSession_MissingConfig(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(nil, ports.ErrNotFound)

	_, err := newFacebookBridge(f).Execute(ctx, "agent-1", FacebookModule, "register_session", nil)

	assert.ErrorIs(t, err, ports.ErrNotFound)
	f.client.AssertNotCalled(t, "RegisterSession", mock.Anything)
}

// ============================================================================
// Watchdog
// ============================================================================

// MockLogPurger mocks LogPurger interface
type MockLogPurger struct {
	mock.Mock
}

func (m *MockLogPurger) PurgeLogs(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

func fixedUsage(percent float64, err error) DiskUsageFunc {
	return func(context.Context) (float64, error) { return percent, err }
}

func TestWatchdog_PurgesAboveThreshold(t *testing.T) {
	purger := new(MockLogPurger)
	ctx := context.Background()
	purger.On("PurgeLogs", ctx, mock.MatchedBy(func(cutoff time.Time) bool {
		return time.Since(cutoff) >= 7*24*time.Hour-time.Minute
	}), purgeBatch).Return(int64(12), nil)

	w := &Watchdog{Purger: purger, DiskUsage: fixedUsage(85, nil), Retention: 7 * 24 * time.Hour, Threshold: 70}

	assert.Equal(t, int64(12), w.Check(ctx))
	purger.AssertExpectations(t)
}

func TestWatchdog_SkipsBelowThresholdOrOnError(t *testing.T) {
	purger := new(MockLogPurger)
	ctx := context.Background()

	low := &Watchdog{Purger: purger, DiskUsage: fixedUsage(40, nil), Threshold: 70}
	assert.Zero(t, low.Check(ctx))

	broken := &Watchdog{Purger: purger, DiskUsage: fixedUsage(0, errors.New("no disk")), Threshold: 70}
	assert.Zero(t, broken.Check(ctx))

	purger.AssertNotCalled(t, "PurgeLogs", mock.Anything, mock.Anything, mock.Anything)
}

func TestWatchdog_RunStopsOnCancel(t *testing.T) {
	purger := new(MockLogPurger)
	ctx, cancel := context.WithCancel(context.Background())

	w := &Watchdog{Purger: purger, DiskUsage: fixedUsage(10, nil), Interval: time.Millisecond, Threshold: 70}
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop")
	}
}

// ============================================================================
// Messaging actions
// ============================================================================

func TestFacebookActions_SendTextMessage(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.client.On("SendTextMessage", "USER_1", "hi").Return(domain.GraphResponse{"message_id": "m.1"})

	result, err := newFacebookBridge(f).Execute(ctx, "agent-1", FacebookModule, "send_text_message",
		map[string]any{"recipient_id": "USER_1", "message": "hi"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message_id": "m.1"}, result)
}

func TestFacebookActions_MissingArgs(t *testing.T) {
	f := newDispatcherFixture()

	_, err := newFacebookBridge(f).Execute(context.Background(), "agent-1", FacebookModule, "reply_to_comment",
		map[string]any{"comment_id": "c1"})

	assert.ErrorIs(t, err, ErrInvalidArgs)
	assert.ErrorContains(t, err, "message is required")
	f.configs.AssertNotCalled(t, "FindByModule", mock.Anything, mock.Anything, mock.Anything)
}

func TestFacebookActions_SendMediaDefaultsToImage(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.client.On("SendMedia", "USER_1", "https://cdn.example/a.png", "image").Return(domain.GraphResponse{"message_id": "m.2"})

	_, err := newFacebookBridge(f).Execute(ctx, "agent-1", FacebookModule, "send_media",
		map[string]any{"recipient_id": "USER_1", "media_url": "https://cdn.example/a.png"})

	require.NoError(t, err)
	f.client.AssertExpectations(t)
}

func TestFacebookActions_RateLimited(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	var details map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"message":"Too many calls","code":613}}`), &details))

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.client.On("PostMessageToPage", "launch!").Return(domain.ErrorResponseWithDetails("400 Client Error", details))

	_, err := newFacebookBridge(f).Execute(ctx, "agent-1", FacebookModule, "post_message_to_page",
		map[string]any{"message": "launch!"})

	assert.ErrorIs(t, err, gateway.ErrRateLimited)
}

func TestFacebookActions_DownloadFile(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.client.On("DownloadFile", "https://cdn.example/a.png").Return("https://bot.example.com/files/fb/x.png", true).Once()
	f.client.On("DownloadFile", "https://cdn.example/gone.png").Return("", false).Once()

	bridge := newFacebookBridge(f)

	result, err := bridge.Execute(ctx, "agent-1", FacebookModule, "download_file", map[string]any{"url": "https://cdn.example/a.png"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": "https://bot.example.com/files/fb/x.png"}, result)

	_, err = bridge.Execute(ctx, "agent-1", FacebookModule, "download_file", map[string]any{"url": "https://cdn.example/gone.png"})
	assert.ErrorIs(t, err, ErrDownloadFailed)
}
