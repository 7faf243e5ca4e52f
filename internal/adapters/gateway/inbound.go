package gateway

import (
	"net/url"

	"facebook-action/internal/adapters/dto"
	"facebook-action/internal/core/domain"
)

// VerificationResult is the outcome of the webhook verification handshake
// Exactly one of Challenge (Accepted), Message/Code (rejected) or Err is meaningful
type VerificationResult struct {
	Accepted  bool
	Challenge string
	Message   string
	Code      int
	Err       error
}

// Body returns what the host should answer: the raw challenge, or a JSON-able map
func (r VerificationResult) Body() any {
	switch {
	case r.Err != nil:
		return map[string]any{"error": r.Err.Error()}
	case r.Accepted:
		return r.Challenge
	default:
		return map[string]any{"message": r.Message, "code": r.Code}
	}
}

// ParseVerificationRequest validates the hub.* handshake Facebook sends on subscription
// Ref: https://developers.facebook.com/docs/messenger-platform/webhooks#verification
func (c *FacebookClient) ParseVerificationRequest(params map[string]any) VerificationResult {
	mode, _, err := dto.ParamString(params, "hub.mode")
	if err != nil {
		return c.verificationFailure(err)
	}
	token, hasToken, err := dto.ParamString(params, "hub.verify_token")
	if err != nil {
		return c.verificationFailure(err)
	}
	challenge, _, err := dto.ParamString(params, "hub.challenge")
	if err != nil {
		return c.verificationFailure(err)
	}

	c.logger.Info("Webhook verification request received",
		"mode", mode,
		"token_matches", hasToken && token == c.cfg.VerifyToken,
	)

	// An absent token never matches, even when none is configured
	if hasToken && token == c.cfg.VerifyToken && mode == "subscribe" {
		return VerificationResult{Accepted: true, Challenge: challenge}
	}
	return VerificationResult{Message: "Invalid token or mode", Code: 403}
}

// ParseVerificationQuery runs the handshake over raw query parameters
func (c *FacebookClient) ParseVerificationQuery(query url.Values) VerificationResult {
	params := make(map[string]any, len(query))
	for k, v := range query {
		params[k] = []string(v)
	}
	return c.ParseVerificationRequest(params)
}

func (c *FacebookClient) verificationFailure(err error) VerificationResult {
	c.logger.Error("Unable to process verification request", "error", err)
	return VerificationResult{Err: err}
}

// RegisterSession subscribes the app to page events delivered to webhookURL
// Uses app-level credentials (app_id|app_secret), never the page token
func (c *FacebookClient) RegisterSession(webhookURL string) domain.GraphResponse {
	var fields *string
	if c.cfg.Fields != "" {
		f := c.cfg.Fields
		fields = &f
	}

	return c.SendRestRequest("POST", c.cfg.AppID+"/subscriptions", RestRequest{
		Params: url.Values{"access_token": {c.cfg.AppID + "|" + c.cfg.AppSecret}},
		JSON: dto.SubscriptionRequest{
			Object:        "page",
			CallbackURL:   webhookURL,
			Fields:        fields,
			VerifyToken:   c.cfg.VerifyToken,
			IncludeValues: "true",
		},
	})
}

// ParseInboundMessage normalizes a decoded webhook payload
// Shape is decided by entry[0]: "changes" (page feed) or "messaging" (Messenger)
func (c *FacebookClient) ParseInboundMessage(payload map[string]any) (*domain.InboundMessage, error) {
	msg, err := ParseInboundMessage(payload)
	if err != nil {
		c.logger.Error("Facebook API: Error processing inbound message", "error", err)
		return nil, err
	}
	return msg, nil
}

// ParseInboundBody decodes a raw webhook body and normalizes it
func (c *FacebookClient) ParseInboundBody(body []byte) (*domain.InboundMessage, error) {
	payload, err := dto.DecodePayload(body)
	if err != nil {
		c.logger.Error("Facebook API: Error processing inbound message", "error", err)
		return nil, err
	}
	return c.ParseInboundMessage(payload)
}

// ParseInboundMessage is the network-free parser behind FacebookClient.ParseInboundMessage
// Any missing key aborts the whole parse
func ParseInboundMessage(payload map[string]any) (*domain.InboundMessage, error) {
	root := dto.NewObject("", payload)

	entry, err := root.First("entry")
	if err != nil {
		return nil, err
	}
	pageID, err := entry.String("id")
	if err != nil {
		return nil, err
	}

	msg := &domain.InboundMessage{
		PageID:      pageID,
		Attachments: []any{},
		Data:        payload,
	}

	switch {
	case entry.Has("changes"):
		err = parsePageChange(entry, msg)
	case entry.Has("messaging"):
		err = parseMessenger(entry, msg)
	default:
		err = &dto.FieldError{Path: "entry[0]", Reason: "expected changes or messaging"}
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func parsePageChange(entry dto.Object, msg *domain.InboundMessage) error {
	change, err := entry.First("changes")
	if err != nil {
		return err
	}
	value, err := change.Object("value")
	if err != nil {
		return err
	}
	from, err := value.Object("from")
	if err != nil {
		return err
	}
	senderID, err := from.String("id")
	if err != nil {
		return err
	}
	senderName, err := from.String("name")
	if err != nil {
		return err
	}
	item, err := value.String("item")
	if err != nil {
		return err
	}

	text := value.OptString("message")
	if text == "" {
		text = value.OptString("reaction_type")
	}

	msg.SenderID = senderID
	msg.SenderName = senderName
	msg.MessageType = item
	msg.Message = text
	msg.Event = domain.PageChangeEvent{
		Item:         item,
		Verb:         value.OptString("verb"),
		PostID:       value.OptString("post_id"),
		CommentID:    value.OptString("comment_id"),
		ReactionType: value.OptString("reaction_type"),
	}
	return nil
}

func parseMessenger(entry dto.Object, msg *domain.InboundMessage) error {
	messaging, err := entry.First("messaging")
	if err != nil {
		return err
	}
	sender, err := messaging.Object("sender")
	if err != nil {
		return err
	}
	senderID, err := sender.String("id")
	if err != nil {
		return err
	}
	message, err := messaging.Object("message")
	if err != nil {
		return err
	}

	msg.SenderID = senderID
	msg.MessageType = domain.MessageTypeMessage
	msg.Message = message.OptString("text")
	msg.Attachments = message.OptList("attachments")
	msg.Event = domain.MessengerEvent{
		RecipientID: messaging.OptObject("recipient").OptString("id"),
		MessageID:   message.OptString("mid"),
		Timestamp:   messaging.OptInt("timestamp"),
	}
	return nil
}
