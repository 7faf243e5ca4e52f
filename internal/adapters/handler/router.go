package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes groups every handler mounted on the host router
// Files and Events are optional
type Routes struct {
	Webhook *WebhookHandler
	Panel   *PanelHandler
	Actions *ActionHandler
	System  *SystemHandler
	Files   *FileHandler
	Events  http.HandlerFunc
}

// NewRouter builds the chi router for the host process
func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", routes.System.GetStatus)

	// Facebook webhook endpoints
	r.Get("/webhook/facebook/{agentID}", routes.Webhook.HandleFacebookVerify)
	r.Post("/webhook/facebook/{agentID}", routes.Webhook.HandleFacebookEvent)

	// Configuration panel
	r.Route("/agents/{agentID}/actions/{actionID}", func(r chi.Router) {
		r.Get("/", routes.Panel.Show)
		r.Post("/config", routes.Panel.SaveConfig)
		r.Post("/register", routes.Panel.Register)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/agents/{agentID}/actions/{module}/{action}", routes.Actions.Execute)
		r.Get("/system/metrics", routes.System.GetSystemMetrics)
		r.Get("/system/intake", routes.System.GetIntake)
		r.Post("/system/intake/pause", routes.System.PauseIntake)
		r.Post("/system/intake/resume", routes.System.ResumeIntake)
	})

	if routes.Files != nil {
		r.Get("/files/*", routes.Files.ServeFile)
	}
	if routes.Events != nil {
		r.Get("/ws/events", routes.Events)
	}

	return r
}
