package dto

// Recipient identifies a Messenger user by PSID (Page-Scoped ID)
type Recipient struct {
	ID string `json:"id"`
}

// SendMessageRequest represents the Facebook Send API payload structure
// Ref: https://developers.facebook.com/docs/messenger-platform/reference/send-api
type SendMessageRequest struct {
	Recipient     Recipient        `json:"recipient"`
	MessagingType string           `json:"messaging_type,omitempty"` // "RESPONSE" for replies
	Message       *OutboundMessage `json:"message,omitempty"`
	SenderAction  string           `json:"sender_action,omitempty"` // "typing_on", "typing_off", "mark_seen"
}

// OutboundMessage carries either text or a single attachment
type OutboundMessage struct {
	Text       string              `json:"text,omitempty"`
	Attachment *OutboundAttachment `json:"attachment,omitempty"`
}

// OutboundAttachment is a media attachment sent by URL
type OutboundAttachment struct {
	Type    string            `json:"type"` // "image", "video", "audio", "file"
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload points Facebook at a remote file
type AttachmentPayload struct {
	URL        string `json:"url"`
	IsReusable bool   `json:"is_reusable"`
}

// FeedPost is the body of a page feed publication
type FeedPost struct {
	Message       string          `json:"message"`
	AttachedMedia []AttachedMedia `json:"attached_media,omitempty"`
}

// AttachedMedia references an unpublished photo or video by id
type AttachedMedia struct {
	MediaFBID any `json:"media_fbid"`
}

// SubscriptionRequest registers a webhook callback for page events
// Ref: https://developers.facebook.com/docs/graph-api/reference/app/subscriptions
type SubscriptionRequest struct {
	Object        string  `json:"object"`
	CallbackURL   string  `json:"callback_url"`
	Fields        *string `json:"fields"`
	VerifyToken   string  `json:"verify_token"`
	IncludeValues string  `json:"include_values"`
}

// FacebookError represents an error from Facebook API
type FacebookError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

// FacebookErrorBody is the envelope Graph returns on non-2xx responses
type FacebookErrorBody struct {
	Error FacebookError `json:"error"`
}
