package gateway

import (
	"net/url"

	"facebook-action/internal/adapters/dto"
	"facebook-action/internal/core/domain"
)

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func (c *FacebookClient) tokenParams() url.Values {
	return url.Values{"access_token": {c.cfg.AccessToken}}
}

// SendTextMessage sends a text message to a Facebook user via Messenger
// recipientID: Page-Scoped User ID (PSID)
func (c *FacebookClient) SendTextMessage(recipientID, message string) domain.GraphResponse {
	payload := dto.SendMessageRequest{
		Recipient:     dto.Recipient{ID: recipientID},
		MessagingType: "RESPONSE",
		Message:       &dto.OutboundMessage{Text: message},
	}

	c.logger.Info("Sending message to Facebook",
		"recipient_psid", recipientID,
		"text_length", len(message),
	)

	return c.SendRestRequest("POST", c.cfg.PageID+"/messages", RestRequest{
		Params:  c.tokenParams(),
		Headers: jsonHeaders,
		JSON:    payload,
	})
}

// SendMedia sends an audio, image, video or file attachment by URL
// mediaType is the Messenger attachment type: "audio", "image", "video" or "file"
func (c *FacebookClient) SendMedia(recipientID, mediaURL, mediaType string) domain.GraphResponse {
	payload := dto.SendMessageRequest{
		Recipient:     dto.Recipient{ID: recipientID},
		MessagingType: "RESPONSE",
		Message: &dto.OutboundMessage{
			Attachment: &dto.OutboundAttachment{
				Type: mediaType,
				Payload: dto.AttachmentPayload{
					URL:        mediaURL,
					IsReusable: true,
				},
			},
		},
	}

	return c.SendRestRequest("POST", c.cfg.PageID+"/messages", RestRequest{
		Params:  c.tokenParams(),
		Headers: jsonHeaders,
		JSON:    payload,
	})
}

// SendSenderAction sends a typing indicator or seen marker
// Shows "..." bubbles in customer's Messenger
func (c *FacebookClient) SendSenderAction(recipientID, action string) domain.GraphResponse {
	return c.SendRestRequest("POST", c.cfg.PageID+"/messages", RestRequest{
		Params:  c.tokenParams(),
		Headers: jsonHeaders,
		JSON: dto.SendMessageRequest{
			Recipient:    dto.Recipient{ID: recipientID},
			SenderAction: action, // "typing_on", "typing_off" or "mark_seen"
		},
	})
}

// GetUserInfo fetches the token owner's profile, fields defaults to "id,name"
func (c *FacebookClient) GetUserInfo(fields string) domain.GraphResponse {
	if fields == "" {
		fields = "id,name"
	}
	params := c.tokenParams()
	params.Set("fields", fields)
	return c.SendRestRequest("GET", "me", RestRequest{Params: params})
}
