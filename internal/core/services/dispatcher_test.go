package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"facebook-action/internal/adapters/gateway"
	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
)

// ============================================================================
// Mocks
// ============================================================================

// MockWebhookRepository mocks WebhookRepository interface
type MockWebhookRepository struct {
	mock.Mock
}

func (m *MockWebhookRepository) SaveLog(ctx context.Context, log *domain.WebhookLog) (int64, error) {
	args := m.Called(ctx, log)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWebhookRepository) UpdateStatus(ctx context.Context, id int64, status string, errorLog *string) error {
	args := m.Called(ctx, id, status, errorLog)
	return args.Error(0)
}

// MockConfigRepository mocks ActionConfigRepository interface
type MockConfigRepository struct {
	mock.Mock
}

func (m *MockConfigRepository) GetActionConfig(ctx context.Context, agentID, actionID string) (*domain.ActionConfig, error) {
	args := m.Called(ctx, agentID, actionID)
	if result := args.Get(0); result != nil {
		return result.(*domain.ActionConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConfigRepository) FindByModule(ctx context.Context, agentID, module string) (*domain.ActionConfig, error) {
	args := m.Called(ctx, agentID, module)
	if result := args.Get(0); result != nil {
		return result.(*domain.ActionConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConfigRepository) SaveActionConfig(ctx context.Context, cfg *domain.ActionConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockMessageHandler mocks MessageHandler interface
type MockMessageHandler struct {
	mock.Mock
}

func (m *MockMessageHandler) HandleMessage(ctx context.Context, agentID string, msg *domain.InboundMessage) error {
	args := m.Called(ctx, agentID, msg)
	return args.Error(0)
}

// MockPublisher mocks EventPublisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(event any) {
	m.Called(event)
}

// MockFacebookAPI mocks the client surface used by services
type MockFacebookAPI struct {
	mock.Mock
}

func (m *MockFacebookAPI) ParseVerificationQuery(query url.Values) gateway.VerificationResult {
	args := m.Called(query)
	return args.Get(0).(gateway.VerificationResult)
}

func (m *MockFacebookAPI) ParseInboundBody(body []byte) (*domain.InboundMessage, error) {
	args := m.Called(body)
	if result := args.Get(0); result != nil {
		return result.(*domain.InboundMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFacebookAPI) RegisterSession(webhookURL string) domain.GraphResponse {
	args := m.Called(webhookURL)
	return args.Get(0).(domain.GraphResponse)
}

func (m *MockFacebookAPI) SendTextMessage(recipientID, message string) domain.GraphResponse {
	args := m.Called(recipientID, message)
	return args.Get(0).(domain.GraphResponse)
}

func (m *MockFacebookAPI) SendMedia(recipientID, mediaURL, mediaType string) domain.GraphResponse {
	args := m.Called(recipientID, mediaURL, mediaType)
	return args.Get(0).(domain.GraphResponse)
}

func (m *MockFacebookAPI) PostMessageToPage(message string) domain.GraphResponse {
	args := m.Called(message)
	return args.Get(0).(domain.GraphResponse)
}

func (m *MockFacebookAPI) ReplyToComment(commentID, message string) domain.GraphResponse {
	args := m.Called(commentID, message)
	return args.Get(0).(domain.GraphResponse)
}

func (m *MockFacebookAPI) DownloadFile(fileURL string) (string, bool) {
	args := m.Called(fileURL)
	return args.String(0), args.Bool(1)
}

// ============================================================================
// Test Helper Functions
// ============================================================================

type dispatcherFixture struct {
	dispatcher *Dispatcher
	configs    *MockConfigRepository
	webhooks   *MockWebhookRepository
	publisher  *MockPublisher
	handler    *MockMessageHandler
	client     *MockFacebookAPI
	intake     *Intake
	lastConfig domain.ClientConfig
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		configs:   new(MockConfigRepository),
		webhooks:  new(MockWebhookRepository),
		publisher: new(MockPublisher),
		handler:   new(MockMessageHandler),
		client:    new(MockFacebookAPI),
		intake:    NewIntake(),
	}
	provider := func(cfg domain.ClientConfig) FacebookAPI {
		f.lastConfig = cfg
		return f.client
	}
	f.dispatcher = NewDispatcher(f.configs, f.webhooks, f.publisher, f.handler, provider, f.intake)
	return f
}

func testAction() *domain.ActionConfig {
	return &domain.ActionConfig{
		AgentID:  "agent-1",
		ActionID: "fb",
		Module:   FacebookModule,
		Config:   domain.ClientConfig{PageID: "PAGE_ID", AccessToken: "tok", VerifyToken: "T"},
	}
}

func testMessage() *domain.InboundMessage {
	return &domain.InboundMessage{
		SenderName:  "Jane",
		SenderID:    "USER_1",
		PageID:      "PAGE_ID",
		MessageType: domain.MessageTypeMessage,
		Message:     "hello",
		Attachments: []any{},
		Event:       domain.MessengerEvent{RecipientID: "PAGE_ID", MessageID: "mid.1"},
	}
}

var payload = []byte(`{"object":"page","entry":[]}`)

// ============================================================================
// ProcessWebhook
// ============================================================================

func TestProcessWebhook_HappyPath(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	msg := testMessage()

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.webhooks.On("SaveLog", ctx, mock.MatchedBy(func(l *domain.WebhookLog) bool {
		return l.AgentID == "agent-1" && l.Status == domain.WebhookStatusPending && string(l.PayloadJSON) == string(payload)
	})).Return(int64(42), nil)
	f.client.On("ParseInboundBody", payload).Return(msg, nil)
	f.publisher.On("Publish", mock.MatchedBy(func(n InboundNotification) bool {
		return n.AgentID == "agent-1" && n.WebhookID == 42 && n.Kind == "messaging" && n.Message == msg
	})).Return()
	f.handler.On("HandleMessage", ctx, "agent-1", msg).Return(nil)
	f.webhooks.On("UpdateStatus", ctx, int64(42), domain.WebhookStatusProcessed, (*string)(nil)).Return(nil)

	err := f.dispatcher.ProcessWebhook(ctx, "agent-1", payload)

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAPIURL, f.lastConfig.APIURL, "client gets defaulted config")
	f.webhooks.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.handler.AssertExpectations(t)
}

func TestProcessWebhook_ParseFailureMarksLogFailed(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	parseErr := errors.New("entry[0].changes: missing")

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.webhooks.On("SaveLog", ctx, mock.Anything).Return(int64(7), nil)
	f.client.On("ParseInboundBody", payload).Return(nil, parseErr)
	f.webhooks.On("UpdateStatus", ctx, int64(7), domain.WebhookStatusFailed, mock.MatchedBy(func(s *string) bool {
		return s != nil && *s == parseErr.Error()
	})).Return(nil)

	err := f.dispatcher.ProcessWebhook(ctx, "agent-1", payload)

	assert.ErrorIs(t, err, parseErr)
	f.webhooks.AssertExpectations(t)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything)
	f.handler.AssertNotCalled(t, "HandleMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessWebhook_UnknownAgent(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	f.configs.On("FindByModule", ctx, "ghost", FacebookModule).Return(nil, ports.ErrNotFound)

	err := f.dispatcher.ProcessWebhook(ctx, "ghost", payload)

	assert.ErrorIs(t, err, ports.ErrNotFound)
	f.webhooks.AssertNotCalled(t, "SaveLog", mock.Anything, mock.Anything)
}

func TestProcessWebhook_WithoutAuditOrPublisher(t *testing.T) {
	configs := new(MockConfigRepository)
	handler := new(MockMessageHandler)
	client := new(MockFacebookAPI)
	ctx := context.Background()
	msg := testMessage()

	configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	client.On("ParseInboundBody", payload).Return(msg, nil)
	handler.On("HandleMessage", ctx, "agent-1", msg).Return(nil)

	d := NewDispatcher(configs, nil, nil, handler, func(domain.ClientConfig) FacebookAPI { return client }, nil)

	require.NoError(t, d.ProcessWebhook(ctx, "agent-1", payload))
	handler.AssertExpectations(t)
}

func TestProcessWebhook_HandlerErrorMarksLogFailed(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	msg := testMessage()

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.webhooks.On("SaveLog", ctx, mock.Anything).Return(int64(9), nil)
	f.client.On("ParseInboundBody", payload).Return(msg, nil)
	f.publisher.On("Publish", mock.Anything).Return()
	f.handler.On("HandleMessage", ctx, "agent-1", msg).Return(errors.New("agent offline"))
	f.webhooks.On("UpdateStatus", ctx, int64(9), domain.WebhookStatusFailed, mock.Anything).Return(nil)

	err := f.dispatcher.ProcessWebhook(ctx, "agent-1", payload)

	assert.ErrorContains(t, err, "agent offline")
	f.webhooks.AssertExpectations(t)
}

func TestProcessWebhook_PausedIntakeSkipsHandler(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	msg := testMessage()
	f.intake.Pause("maintenance", "ops")

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.webhooks.On("SaveLog", ctx, mock.Anything).Return(int64(3), nil)
	f.client.On("ParseInboundBody", payload).Return(msg, nil)
	f.publisher.On("Publish", mock.Anything).Return()
	f.webhooks.On("UpdateStatus", ctx, int64(3), domain.WebhookStatusProcessed, (*string)(nil)).Return(nil)

	require.NoError(t, f.dispatcher.ProcessWebhook(ctx, "agent-1", payload))

	f.handler.AssertNotCalled(t, "HandleMessage", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertExpectations(t)
}

func TestProcessWebhook_InvalidJSONIsAuditedAsString(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	body := []byte("not-json")

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.webhooks.On("SaveLog", ctx, mock.MatchedBy(func(l *domain.WebhookLog) bool {
		return string(l.PayloadJSON) == `"not-json"`
	})).Return(int64(1), nil)
	f.client.On("ParseInboundBody", body).Return(nil, errors.New("invalid character"))
	f.webhooks.On("UpdateStatus", ctx, int64(1), domain.WebhookStatusFailed, mock.Anything).Return(nil)

	assert.Error(t, f.dispatcher.ProcessWebhook(ctx, "agent-1", body))
	f.webhooks.AssertExpectations(t)
}

func TestProcessWebhook_RecoversPanic(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	f.configs.On("FindByModule", ctx, "agent-1", FacebookModule).Return(testAction(), nil)
	f.webhooks.On("SaveLog", ctx, mock.Anything).Return(int64(0), errors.New("db down"))
	f.client.On("ParseInboundBody", payload).Run(func(mock.Arguments) { panic("boom") })

	var err error
	assert.NotPanics(t, func() { err = f.dispatcher.ProcessWebhook(ctx, "agent-1", payload) })
	assert.ErrorContains(t, err, "boom")
}

// ============================================================================
// Intake and default handler
// ============================================================================

func TestIntake_PauseResume(t *testing.T) {
	intake := NewIntake()
	assert.False(t, intake.IsPaused())
	assert.Equal(t, map[string]any{"paused": false}, intake.Status())

	intake.Pause("spam wave", "ops")
	assert.True(t, intake.IsPaused())
	status := intake.Status()
	assert.Equal(t, "spam wave", status["reason"])
	assert.Equal(t, "ops", status["paused_by"])
	assert.WithinDuration(t, time.Now(), status["paused_at"].(time.Time), time.Second)

	intake.Resume("ops")
	assert.False(t, intake.IsPaused())
}

func TestLoggingHandler(t *testing.T) {
	h := LoggingHandler{}
	assert.NoError(t, h.HandleMessage(context.Background(), "agent-1", testMessage()))
	assert.Error(t, h.HandleMessage(context.Background(), "agent-1", nil))
}
