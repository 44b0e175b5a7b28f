package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-tavern/widget/internal/handler/chat"
	"github.com/zhouzirui/z-tavern/widget/internal/handler/persona"
	middlewarePkg "github.com/zhouzirui/z-tavern/widget/internal/middleware"
	personaModel "github.com/zhouzirui/z-tavern/widget/internal/model/persona"
	aiService "github.com/zhouzirui/z-tavern/widget/internal/service/ai"
	chatService "github.com/zhouzirui/z-tavern/widget/internal/service/chat"
	"github.com/zhouzirui/z-tavern/widget/pkg/utils"
)

// Deps are the services the router exposes.
type Deps struct {
	Personas  personaModel.Store
	Chat      *chatService.Service
	Responder aiService.Responder
	Options   chat.Options
	Logger    *log.Logger
	// Quiet drops the per-request access log.
	Quiet bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middlewarePkg.EchoRequestID)
	r.Use(middleware.RealIP)
	if !deps.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chat, deps.Personas, deps.Responder, deps.Options, deps.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	personaHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	// Older widget builds expect the API under /api.
	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	return r
}
