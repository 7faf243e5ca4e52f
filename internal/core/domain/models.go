// Package domain contains core business entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ClientConfig holds the credentials and settings of one Facebook action
// Constructed once per agent configuration and never mutated afterwards
type ClientConfig struct {
	APIURL      string `json:"api_url" yaml:"api_url"`
	AppSecret   string `json:"app_secret" yaml:"app_secret"`
	AppID       string `json:"app_id" yaml:"app_id"`
	PageID      string `json:"page_id" yaml:"page_id"`
	AccessToken string `json:"access_token" yaml:"access_token"`
	VerifyToken string `json:"verify_token" yaml:"verify_token"`
	Fields      string `json:"fields,omitempty" yaml:"fields,omitempty"` // Subscription fields, comma separated
	Timeout     int    `json:"timeout" yaml:"timeout"`                   // Seconds
}

const (
	DefaultAPIURL  = "https://graph.facebook.com/v19.0/"
	DefaultTimeout = 10
)

// WithDefaults fills unset optional values
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate checks the fields every page-level call depends on
func (c ClientConfig) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("api_url is required"))
	}
	if c.PageID == "" {
		errs = append(errs, errors.New("page_id is required"))
	}
	if c.AccessToken == "" {
		errs = append(errs, errors.New("access_token is required"))
	}
	if c.VerifyToken == "" {
		errs = append(errs, errors.New("verify_token is required"))
	}
	return errors.Join(errs...)
}

// TimeoutDuration returns the request timeout as a duration
func (c ClientConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// MessageType constants
const (
	MessageTypeMessage  = "message"
	MessageTypeComment  = "comment"
	MessageTypeReaction = "reaction"
)

// InboundMessage is the normalized form of one Facebook webhook call
// Caption and ParentMessageID are reserved and always empty for now
type InboundMessage struct {
	SenderName      string         `json:"sender_name"`
	SenderID        string         `json:"sender_id"`
	PageID          string         `json:"page_id"`
	MessageType     string         `json:"message_type"`
	Message         string         `json:"message"`
	Attachments     []any          `json:"attachments"`
	Caption         string         `json:"caption"`
	Data            map[string]any `json:"data"`
	ParentMessageID string         `json:"parent_message_id"`

	// Event is the shape-specific variant the message was extracted from
	Event InboundEvent `json:"-"`
}

// InboundEvent is implemented by every detected webhook shape
type InboundEvent interface {
	eventKind() string
}

// PageChangeEvent is a Page feed event delivered under entry.changes
type PageChangeEvent struct {
	Item         string
	Verb         string
	PostID       string
	CommentID    string
	ReactionType string
}

func (PageChangeEvent) eventKind() string { return "changes" }

// MessengerEvent is a Messenger event delivered under entry.messaging
type MessengerEvent struct {
	RecipientID string
	MessageID   string
	Timestamp   int64
}

func (MessengerEvent) eventKind() string { return "messaging" }

// EventKind reports which payload shape produced the message
func (m *InboundMessage) EventKind() string {
	if m == nil || m.Event == nil {
		return ""
	}
	return m.Event.eventKind()
}

// FailureEnvelope renders a parse failure the way callers expect it on the wire
func FailureEnvelope(err error) map[string]any {
	return map[string]any{
		"ok":    false,
		"error": err.Error(),
	}
}

// File type categories used to pick an upload endpoint
const (
	FileTypeImage    = "image"
	FileTypeDocument = "document"
	FileTypeAudio    = "audio"
	FileTypeVideo    = "video"
	FileTypeUnknown  = "unknown"
)

// MimeClassification maps a detected content type to a coarse category
// Mime is empty when no type could be detected and encodes as null
type MimeClassification struct {
	FileType string `json:"file_type"`
	Mime     string `json:"mime"`
}

func (m MimeClassification) MarshalJSON() ([]byte, error) {
	var mime *string
	if m.Mime != "" {
		mime = &m.Mime
	}
	return json.Marshal(struct {
		FileType string  `json:"file_type"`
		Mime     *string `json:"mime"`
	}{m.FileType, mime})
}

// GraphResponse is the decoded JSON body of a Graph API call or an error envelope
type GraphResponse map[string]any

// ErrorResponse builds an error envelope without details
func ErrorResponse(message string) GraphResponse {
	return GraphResponse{"error": message}
}

// ErrorResponseWithDetails builds an error envelope carrying the parsed error body (may be nil)
func ErrorResponseWithDetails(message string, details any) GraphResponse {
	return GraphResponse{"error": message, "details": details}
}

// HasError reports whether the response is an error envelope
func (r GraphResponse) HasError() bool {
	_, ok := r["error"]
	return ok
}

// ErrorMessage returns the envelope message, empty when the call succeeded
func (r GraphResponse) ErrorMessage() string {
	v, ok := r["error"]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// String returns a string field or empty string
func (r GraphResponse) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// WebhookLog represents the audit trail for incoming webhook events
type WebhookLog struct {
	ID          int64           `json:"id" db:"id"`
	AgentID     string          `json:"agent_id" db:"agent_id"`
	Platform    string          `json:"platform" db:"platform"`
	PayloadJSON json.RawMessage `json:"payload_json" db:"payload_json"`
	Status      string          `json:"status" db:"status"`
	ErrorLog    *string         `json:"error_log,omitempty" db:"error_log"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// WebhookStatus constants for lifecycle management
const (
	WebhookStatusPending   = "pending"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// ActionConfig binds a ClientConfig to the agent action that owns it
type ActionConfig struct {
	AgentID   string       `json:"agent_id" yaml:"agent_id" db:"agent_id"`
	ActionID  string       `json:"action_id" yaml:"action_id" db:"action_id"`
	Module    string       `json:"module" yaml:"module" db:"module"`
	Config    ClientConfig `json:"config" yaml:"config" db:"config"`
	UpdatedAt time.Time    `json:"updated_at" yaml:"-" db:"updated_at"`
}
