package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
	"facebook-action/internal/core/services"
)

// Messages shown after the Register Webhook button is used
const (
	registerSuccessText = "Webhook registered successfully!"
	registerFailureText = "Failed to register webhook. Please try again."
)

var panelTemplate = template.Must(template.New("panel").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Facebook · {{.AgentID}}</title></head>
<body>
<h1>Facebook action <small>{{.AgentID}} / {{.ActionID}}</small></h1>
{{with .Flash}}<p class="flash {{.Kind}}">{{.Text}}</p>{{end}}
{{if .Errors}}<ul class="errors">{{range .Errors}}<li>{{.}}</li>{{end}}</ul>{{end}}

<details>
<summary>Facebook Configuration</summary>
<form method="post" action="/agents/{{.AgentID}}/actions/{{.ActionID}}/config">
{{range .Fields}}
<label>{{.Label}} <input name="{{.Name}}" type="{{.Type}}" value="{{.Value}}"></label><br>
{{end}}
<button type="submit">Update</button>
</form>
</details>

<details open>
<summary>Register Webhook</summary>
<h3>Webhook Registration</h3>
<p>Click the button below to register the webhook. This enables your agent to communicate with Facebook.</p>
<p>Callback URL: <code>{{.WebhookURL}}</code></p>
<form method="post" action="/agents/{{.AgentID}}/actions/{{.ActionID}}/register">
<button type="submit">Register Webhook</button>
</form>
</details>
</body>
</html>
`))

type panelField struct {
	Name  string
	Label string
	Type  string
	Value string
}

type panelFlash struct {
	Kind string // success | error
	Text string
}

type panelPage struct {
	AgentID    string
	ActionID   string
	WebhookURL string
	Fields     []panelField
	Flash      *panelFlash
	Errors     []string
}

// PanelHandler serves the operator configuration panel of a Facebook action
type PanelHandler struct {
	configs    ports.ActionConfigRepository
	executor   ports.ActionExecutor
	webhookURL func(agentID string) string
}

// NewPanelHandler creates a panel handler; webhookURL renders the callback URL hint
func NewPanelHandler(configs ports.ActionConfigRepository, executor ports.ActionExecutor, webhookURL func(agentID string) string) *PanelHandler {
	return &PanelHandler{
		configs:    configs,
		executor:   executor,
		webhookURL: webhookURL,
	}
}

// Show renders the panel
// GET /agents/{agentID}/actions/{actionID}
func (h *PanelHandler) Show(w http.ResponseWriter, r *http.Request) {
	action, err := h.load(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, http.StatusOK, action, nil, nil)
}

// SaveConfig persists the edited configuration fields
// POST /agents/{agentID}/actions/{actionID}/config
func (h *PanelHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	action, err := h.load(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeAPI(w, r, BadRequestResponse("invalid form"))
		return
	}

	edited, problems := configFromForm(r)
	action.Config = edited
	if err := edited.Validate(); err != nil {
		problems = append(problems, strings.Split(err.Error(), "\n")...)
	}
	if len(problems) > 0 {
		h.render(w, http.StatusUnprocessableEntity, action, nil, problems)
		return
	}

	action.UpdatedAt = time.Now()
	if err := h.configs.SaveActionConfig(r.Context(), action); err != nil {
		slog.Error("Failed to save action config", "error", err, "agent_id", action.AgentID)
		h.render(w, http.StatusInternalServerError, action, &panelFlash{Kind: "error", Text: "Failed to save configuration."}, nil)
		return
	}

	h.render(w, http.StatusOK, action, &panelFlash{Kind: "success", Text: "Configuration updated."}, nil)
}

// Register runs register_session through the action bridge
// POST /agents/{agentID}/actions/{actionID}/register
func (h *PanelHandler) Register(w http.ResponseWriter, r *http.Request) {
	action, err := h.load(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	result, err := h.executor.Execute(r.Context(), action.AgentID, services.FacebookModule, "register_session", map[string]any{})
	if err != nil {
		slog.Warn("Register webhook failed", "error", err, "agent_id", action.AgentID)
	}

	flash := &panelFlash{Kind: "error", Text: registerFailureText}
	if truthy(result) {
		flash = &panelFlash{Kind: "success", Text: registerSuccessText}
	}
	h.render(w, http.StatusOK, action, flash, nil)
}

// load returns the stored action, or a fresh one with defaults when none exists yet
func (h *PanelHandler) load(r *http.Request) (*domain.ActionConfig, error) {
	agentID := chi.URLParam(r, "agentID")
	actionID := chi.URLParam(r, "actionID")

	action, err := h.configs.GetActionConfig(r.Context(), agentID, actionID)
	if errors.Is(err, ports.ErrNotFound) {
		return &domain.ActionConfig{
			AgentID:  agentID,
			ActionID: actionID,
			Module:   services.FacebookModule,
			Config:   domain.ClientConfig{}.WithDefaults(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if action.Module != services.FacebookModule {
		return nil, errNotFacebookAction
	}
	return action, nil
}

var errNotFacebookAction = errors.New("action is not a facebook action")

func (h *PanelHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errNotFacebookAction) {
		writeAPI(w, r, NotFoundResponse(err.Error()))
		return
	}
	slog.Error("Failed to load action config", "error", err)
	writeAPI(w, r, InternalErrorResponse("failed to load action config"))
}

func (h *PanelHandler) render(w http.ResponseWriter, status int, action *domain.ActionConfig, flash *panelFlash, problems []string) {
	cfg := action.Config
	page := panelPage{
		AgentID:    action.AgentID,
		ActionID:   action.ActionID,
		WebhookURL: h.webhookURL(action.AgentID),
		Flash:      flash,
		Errors:     problems,
		Fields: []panelField{
			{Name: "api_url", Label: "API URL", Type: "text", Value: cfg.APIURL},
			{Name: "app_secret", Label: "App Secret", Type: "password", Value: cfg.AppSecret},
			{Name: "app_id", Label: "App ID", Type: "text", Value: cfg.AppID},
			{Name: "page_id", Label: "Page ID", Type: "text", Value: cfg.PageID},
			{Name: "access_token", Label: "Access Token", Type: "password", Value: cfg.AccessToken},
			{Name: "verify_token", Label: "Verify Token", Type: "text", Value: cfg.VerifyToken},
			{Name: "fields", Label: "Fields", Type: "text", Value: cfg.Fields},
			{Name: "timeout", Label: "Timeout (seconds)", Type: "number", Value: strconv.Itoa(cfg.Timeout)},
		},
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := panelTemplate.Execute(w, page); err != nil {
		slog.Error("Failed to render panel", "error", err)
	}
}

func configFromForm(r *http.Request) (domain.ClientConfig, []string) {
	var problems []string
	cfg := domain.ClientConfig{
		APIURL:      strings.TrimSpace(r.PostFormValue("api_url")),
		AppSecret:   strings.TrimSpace(r.PostFormValue("app_secret")),
		AppID:       strings.TrimSpace(r.PostFormValue("app_id")),
		PageID:      strings.TrimSpace(r.PostFormValue("page_id")),
		AccessToken: strings.TrimSpace(r.PostFormValue("access_token")),
		VerifyToken: strings.TrimSpace(r.PostFormValue("verify_token")),
		Fields:      strings.TrimSpace(r.PostFormValue("fields")),
	}
	if raw := strings.TrimSpace(r.PostFormValue("timeout")); raw != "" {
		timeout, err := strconv.Atoi(raw)
		if err != nil || timeout <= 0 {
			problems = append(problems, "timeout must be a positive number of seconds")
		}
		cfg.Timeout = timeout
	}
	return cfg.WithDefaults(), problems
}

// truthy reports whether an action result counts as success
// nil, false, zero numbers and empty strings, maps or slices do not
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
