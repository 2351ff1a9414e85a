package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autama/autama/backend/internal/handler/chat"
	"github.com/autama/autama/backend/internal/handler/live"
	"github.com/autama/autama/backend/internal/handler/persona"
	"github.com/autama/autama/backend/internal/handler/stream"
	"github.com/autama/autama/backend/internal/handler/user"
	middlewarePkg "github.com/autama/autama/backend/internal/middleware"
	personaModel "github.com/autama/autama/backend/internal/model/persona"
	accountService "github.com/autama/autama/backend/internal/service/account"
	autamaService "github.com/autama/autama/backend/internal/service/autama"
	chatService "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/pkg/utils"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Personas      personaModel.Store
	Autamas       *autamaService.Service
	Accounts      *accountService.Service
	Chat          *chatService.Service
	DefaultAmount int
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	personaHandler := persona.New(svc.Personas, svc.Autamas, svc.DefaultAmount)
	userHandler := user.New(svc.Accounts)
	chatHandler := chat.New(svc.Chat)
	streamHandler := stream.New(svc.Chat, svc.Personas)
	wsHandler := live.NewWebSocketHandler(svc.Chat, svc.Personas)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.Authenticate(svc.Accounts))

		personaHandler.RegisterRoutes(api)
		userHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
