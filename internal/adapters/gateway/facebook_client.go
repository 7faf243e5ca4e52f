// Package gateway implements external API adapters
// Following Hexagonal Architecture: Outbound adapters for external services
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"

	"facebook-action/internal/adapters/dto"
	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
)

// Custom errors for specific Facebook API failures
var (
	// ErrTokenExpired indicates the page access token is expired or invalid (code 190)
	ErrTokenExpired = errors.New("facebook access token expired or invalid")

	// ErrRateLimited indicates Facebook rate limit exceeded (code 4, 17, 32, 613)
	ErrRateLimited = errors.New("facebook rate limit exceeded")

	// ErrPermissionDenied indicates missing permissions (code 10, 200, 299)
	ErrPermissionDenied = errors.New("facebook permission denied")
)

// FacebookClient handles communication with Facebook Graph API
// One instance per action configuration; the configuration is never mutated
type FacebookClient struct {
	cfg        domain.ClientConfig
	httpClient *http.Client
	storage    ports.FileStorage
	logger     *slog.Logger
}

// Option customizes a FacebookClient
type Option func(*FacebookClient)

// WithHTTPClient replaces the default HTTP client
// A client without a Timeout gets the configured one. Timeout envelopes always
// report the configured seconds, so a custom Timeout should match cfg.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *FacebookClient) {
		if hc == nil {
			return
		}
		if hc.Timeout == 0 {
			withTimeout := *hc
			withTimeout.Timeout = c.cfg.TimeoutDuration()
			hc = &withTimeout
		}
		c.httpClient = hc
	}
}

// WithLogger sets the logger owned by the client
func WithLogger(logger *slog.Logger) Option {
	return func(c *FacebookClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStorage sets the file storage used by DownloadFile
func WithStorage(storage ports.FileStorage) Option {
	return func(c *FacebookClient) {
		c.storage = storage
	}
}

// NewFacebookClient creates a new Facebook API client
func NewFacebookClient(cfg domain.ClientConfig, opts ...Option) *FacebookClient {
	cfg = cfg.WithDefaults()
	c := &FacebookClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.TimeoutDuration(),
		},
		logger: slog.Default().With("component", "facebook_api", "page_id", cfg.PageID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns a copy of the client configuration
func (c *FacebookClient) Config() domain.ClientConfig {
	return c.cfg
}

// RestRequest describes the optional parts of a Graph API call
// Data is sent form-encoded and takes precedence over JSON
type RestRequest struct {
	Params  url.Values
	Data    url.Values
	Headers map[string]string
	JSON    any
}

// SendRestRequest is the centralized method for Graph API calls
// It never returns a Go error: failures come back as {"error": ...} envelopes
func (c *FacebookClient) SendRestRequest(method, endpoint string, req RestRequest) (result domain.GraphResponse) {
	target := c.resolveURL(endpoint)

	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("%v", r)
			c.logger.Error("Unexpected error", "method", method, "url", redactURL(target), "trace", fmt.Sprintf("%+v", err))
			result = domain.ErrorResponse(err.Error())
		}
	}()

	resp, err := c.do(method, target, req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Error("Request timed out",
				"timeout_seconds", c.cfg.Timeout,
				"url", redactURL(target),
				"error", err,
			)
			return domain.ErrorResponse(fmt.Sprintf("Timeout after %d seconds", c.cfg.Timeout))
		}

		var unexpected *unexpectedError
		if errors.As(err, &unexpected) {
			c.logger.Error("Unexpected error", "method", method, "url", redactURL(target), "trace", fmt.Sprintf("%+v", unexpected.cause))
			return domain.ErrorResponse(unexpected.Error())
		}

		c.logger.Error("Request error", "method", method, "url", redactURL(target), "error", err)
		return domain.ErrorResponseWithDetails(err.Error(), nil)
	}

	return resp
}

// unexpectedError marks failures outside the transport (encoding, decoding, request building)
type unexpectedError struct {
	cause error
}

func (e *unexpectedError) Error() string { return e.cause.Error() }
func (e *unexpectedError) Unwrap() error { return e.cause }

func unexpected(err error, message string) error {
	return &unexpectedError{cause: errors.Wrap(err, message)}
}

func (c *FacebookClient) do(method, target string, req RestRequest) (domain.GraphResponse, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, unexpected(err, "invalid url")
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for key, values := range req.Params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, unexpected(err, "encode request body")
	}

	httpReq, err := http.NewRequest(strings.ToUpper(method), u.String(), body)
	if err != nil {
		return nil, unexpected(err, "create request")
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		details := decodeDetails(raw)
		c.logGraphError(method, u, resp.StatusCode, raw)
		return domain.ErrorResponseWithDetails(statusMessage(resp.StatusCode, redactURL(u.String())), details), nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.GraphResponse{}, nil
	}

	decoded, err := decodeJSON(raw)
	if err != nil {
		return nil, unexpected(err, "decode response body")
	}
	if obj, ok := decoded.(map[string]any); ok {
		return domain.GraphResponse(obj), nil
	}
	// Some edges answer with a bare scalar such as `true`
	return domain.GraphResponse{"result": decoded}, nil
}

func (c *FacebookClient) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if strings.HasSuffix(c.cfg.APIURL, "/") {
		return c.cfg.APIURL + strings.TrimPrefix(endpoint, "/")
	}
	return c.cfg.APIURL + "/" + strings.TrimPrefix(endpoint, "/")
}

func encodeBody(req RestRequest) (io.Reader, string, error) {
	if req.Data != nil {
		return strings.NewReader(req.Data.Encode()), "application/x-www-form-urlencoded", nil
	}
	if req.JSON != nil {
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(payload), "application/json", nil
	}
	return nil, "", nil
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeDetails parses an error body, nil when it is empty or not JSON
func decodeDetails(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	v, err := decodeJSON(raw)
	if err != nil {
		return nil
	}
	return v
}

func statusMessage(code int, target string) string {
	kind := "Client"
	if code >= 500 {
		kind = "Server"
	}
	return fmt.Sprintf("%d %s Error: %s for url: %s", code, kind, http.StatusText(code), target)
}

func (c *FacebookClient) logGraphError(method string, u *url.URL, status int, raw []byte) {
	var fbError dto.FacebookErrorBody
	if err := json.Unmarshal(raw, &fbError); err != nil || fbError.Error.Code == 0 {
		c.logger.Error("Facebook API error (unparseable)",
			"method", method,
			"url", redactURL(u.String()),
			"status_code", status,
			"body", string(raw),
		)
		return
	}

	c.logger.Error("Facebook API error",
		"method", method,
		"url", redactURL(u.String()),
		"status_code", status,
		"error_code", fbError.Error.Code,
		"error_message", fbError.Error.Message,
		"error_subcode", fbError.Error.ErrorSubcode,
		"fbtrace_id", fbError.Error.FBTraceID,
	)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// redactURL strips credentials from a URL before it is logged
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ClassifyError maps a Graph error envelope to a sentinel error
// Returns nil when the response is not an error
func ClassifyError(resp domain.GraphResponse) error {
	if !resp.HasError() {
		return nil
	}
	details, _ := resp["details"].(map[string]any)
	fbErr, _ := details["error"].(map[string]any)

	var code int64
	switch v := fbErr["code"].(type) {
	case json.Number:
		code, _ = v.Int64()
	case float64:
		code = int64(v)
	}

	switch code {
	case 190: // Token expired/invalid
		return ErrTokenExpired
	case 4, 17, 32, 613: // Rate limiting
		return ErrRateLimited
	case 10, 200, 299: // Permission errors
		return ErrPermissionDenied
	case 0:
		return errors.New(resp.ErrorMessage())
	default:
		return fmt.Errorf("facebook api error (code %d): %s", code, resp.ErrorMessage())
	}
}
