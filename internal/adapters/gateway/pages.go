package gateway

import (
	"net/url"
	"strconv"

	"facebook-action/internal/adapters/dto"
	"facebook-action/internal/core/domain"
)

const (
	defaultPagesLimit    = 100
	defaultPostsLimit    = 10
	defaultCommentsLimit = 10
	defaultPageFields    = "id,name,about,fan_count,access_token"
)

// ListAllPages lists every page managed by the token owner, following paging.next
// Any failed page discards everything collected so far and yields an empty list
func (c *FacebookClient) ListAllPages(limit int) []any {
	if limit <= 0 {
		limit = defaultPagesLimit
	}

	pages := []any{}
	endpoint := "me/accounts"
	params := c.tokenParams()
	params.Set("limit", strconv.Itoa(limit))

	for {
		resp := c.SendRestRequest("GET", endpoint, RestRequest{Params: params})
		if resp.HasError() {
			c.logger.Warn("Listing pages aborted", "error", resp.ErrorMessage(), "collected", len(pages))
			return []any{}
		}
		if data, ok := resp["data"].([]any); ok {
			pages = append(pages, data...)
		}

		paging, _ := resp["paging"].(map[string]any)
		next, _ := paging["next"].(string)
		if next == "" {
			break
		}
		// The next cursor URL already carries the token and limit
		endpoint = next
		params = nil
	}

	c.logger.Debug("Listed pages", "count", len(pages))
	return pages
}

// GetPageDetails fetches the configured page, fields defaults to id,name,about,fan_count,access_token
func (c *FacebookClient) GetPageDetails(fields string) domain.GraphResponse {
	if fields == "" {
		fields = defaultPageFields
	}
	params := c.tokenParams()
	params.Set("fields", fields)
	return c.SendRestRequest("GET", c.cfg.PageID, RestRequest{Params: params})
}

// PostMessageToPage publishes a text post on the page feed
func (c *FacebookClient) PostMessageToPage(message string) domain.GraphResponse {
	return c.SendRestRequest("POST", c.cfg.PageID+"/feed", RestRequest{
		Params:  c.tokenParams(),
		Headers: jsonHeaders,
		JSON:    dto.FeedPost{Message: message},
	})
}

// GetPagePosts retrieves the page's posts, most recent first
func (c *FacebookClient) GetPagePosts(limit int) domain.GraphResponse {
	if limit <= 0 {
		limit = defaultPostsLimit
	}
	params := c.tokenParams()
	params.Set("limit", strconv.Itoa(limit))
	return c.SendRestRequest("GET", c.cfg.PageID+"/posts", RestRequest{Params: params})
}

// GetSinglePost retrieves one post by id
func (c *FacebookClient) GetSinglePost(postID string) domain.GraphResponse {
	return c.SendRestRequest("GET", postID, RestRequest{Params: c.tokenParams()})
}

// CommentOnPost adds a comment to a post
func (c *FacebookClient) CommentOnPost(postID, message string) domain.GraphResponse {
	params := c.tokenParams()
	params.Set("message", message)
	return c.SendRestRequest("POST", postID+"/comments", RestRequest{Params: params})
}

// PostImagesToPage uploads every image unpublished, then publishes one feed post with them attached
// Failed uploads are skipped; if none succeed no feed post is made
func (c *FacebookClient) PostImagesToPage(imageURLs []string, caption string) domain.GraphResponse {
	imageIDs := make([]any, 0, len(imageURLs))
	for _, imageURL := range imageURLs {
		if id, ok := c.uploadPhoto(imageURL); ok {
			imageIDs = append(imageIDs, id)
		}
	}

	if len(imageIDs) == 0 {
		return domain.ErrorResponse("Failed to upload any images")
	}
	return c.publishWithMedia(caption, imageIDs)
}

// PostVideosToPage uploads every video by URL, then publishes one feed post with them attached
func (c *FacebookClient) PostVideosToPage(title, caption string, videoURLs []string) domain.GraphResponse {
	videoIDs := make([]any, 0, len(videoURLs))
	for _, videoURL := range videoURLs {
		if id, ok := c.uploadVideo(videoURL, title); ok {
			videoIDs = append(videoIDs, id)
		}
	}

	if len(videoIDs) == 0 {
		return domain.ErrorResponse("Failed to upload any videos")
	}
	return c.publishWithMedia(caption, videoIDs)
}

// MediaRef points at one remote media file to publish
type MediaRef struct {
	URL string `json:"url"`
}

// PostMediaToPage uploads mixed media, choosing the endpoint from a HEAD probe of each URL
// Items that are neither image nor video are skipped
func (c *FacebookClient) PostMediaToPage(caption string, media []MediaRef) domain.GraphResponse {
	mediaIDs := make([]any, 0, len(media))
	for _, item := range media {
		info := c.GetMimeType(MimeSource{URL: item.URL})
		if info == nil {
			continue
		}

		var (
			id any
			ok bool
		)
		switch info.FileType {
		case domain.FileTypeVideo:
			id, ok = c.uploadVideo(item.URL, "")
		case domain.FileTypeImage:
			id, ok = c.uploadPhoto(item.URL)
		default:
			c.logger.Debug("Skipping unsupported media", "url", item.URL, "mime", info.Mime)
			continue
		}
		if ok {
			mediaIDs = append(mediaIDs, id)
		}
	}

	if len(mediaIDs) == 0 {
		return domain.ErrorResponse("No valid media uploaded")
	}
	return c.publishWithMedia(caption, mediaIDs)
}

func (c *FacebookClient) uploadPhoto(imageURL string) (any, bool) {
	params := c.tokenParams()
	params.Set("url", imageURL)
	params.Set("published", "false")

	resp := c.SendRestRequest("POST", c.cfg.PageID+"/photos", RestRequest{Params: params})
	if resp.HasError() {
		c.logger.Warn("Photo upload failed, skipping", "url", imageURL, "error", resp.ErrorMessage())
		return nil, false
	}
	return resp["id"], true
}

func (c *FacebookClient) uploadVideo(videoURL, title string) (any, bool) {
	params := c.tokenParams()
	if title != "" {
		params.Set("title", title)
	}
	params.Set("file_url", videoURL)

	resp := c.SendRestRequest("POST", c.cfg.PageID+"/videos", RestRequest{Params: params})
	if resp.HasError() {
		c.logger.Warn("Video upload failed, skipping", "url", videoURL, "error", resp.ErrorMessage())
		return nil, false
	}
	return resp["id"], true
}

func (c *FacebookClient) publishWithMedia(caption string, ids []any) domain.GraphResponse {
	attached := make([]dto.AttachedMedia, 0, len(ids))
	for _, id := range ids {
		attached = append(attached, dto.AttachedMedia{MediaFBID: id})
	}
	return c.SendRestRequest("POST", c.cfg.PageID+"/feed", RestRequest{
		Params: c.tokenParams(),
		JSON: dto.FeedPost{
			Message:       caption,
			AttachedMedia: attached,
		},
	})
}

// GetPostComments retrieves comments on a post
func (c *FacebookClient) GetPostComments(postID string, limit int) domain.GraphResponse {
	if limit <= 0 {
		limit = defaultCommentsLimit
	}
	params := c.tokenParams()
	params.Set("limit", strconv.Itoa(limit))
	return c.SendRestRequest("GET", postID+"/comments", RestRequest{Params: params})
}

// ReplyToComment replies to a comment with text
func (c *FacebookClient) ReplyToComment(commentID, message string) domain.GraphResponse {
	params := c.tokenParams()
	params.Set("message", message)
	return c.SendRestRequest("POST", commentID+"/comments", RestRequest{Params: params})
}

// ReplyToCommentWithAttachment replies to a comment with a remote attachment
func (c *FacebookClient) ReplyToCommentWithAttachment(commentID, attachmentURL string) domain.GraphResponse {
	data := url.Values{
		"attachment_url": {attachmentURL},
		"access_token":   {c.cfg.AccessToken},
	}
	return c.SendRestRequest("POST", commentID+"/comments", RestRequest{Data: data})
}

// UpdateComment edits the text of a comment
func (c *FacebookClient) UpdateComment(commentID, message string) domain.GraphResponse {
	data := url.Values{
		"message":      {message},
		"access_token": {c.cfg.AccessToken},
	}
	return c.SendRestRequest("POST", commentID, RestRequest{Data: data})
}

// LikeComment likes a comment as the page
func (c *FacebookClient) LikeComment(commentID string) domain.GraphResponse {
	return c.SendRestRequest("POST", commentID+"/likes", RestRequest{Params: c.tokenParams()})
}

// GetReactions retrieves reactions on a post
func (c *FacebookClient) GetReactions(postID string) domain.GraphResponse {
	return c.SendRestRequest("GET", postID+"/reactions", RestRequest{Params: c.tokenParams()})
}

// ShareFacebookPost returns the permalink of a post
func (c *FacebookClient) ShareFacebookPost(postID string) domain.GraphResponse {
	params := c.tokenParams()
	params.Set("fields", "permalink_url")

	resp := c.SendRestRequest("GET", postID, RestRequest{Params: params})
	if permalink, ok := resp["permalink_url"]; ok {
		return domain.GraphResponse{"status": "success", "data": permalink}
	}

	message := resp.ErrorMessage()
	if message == "" {
		message = "Unknown error"
	}
	return domain.GraphResponse{"status": "error", "message": message}
}
