package api

import (
	"net/http"
	"omega/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*routeSettings)

type routeSettings struct {
	otelService string
	chatLimiter mux.MiddlewareFunc
}

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(s *routeSettings) {
		s.otelService = serviceName
	}
}

// WithChatRateLimiter applies the rate gate to POST /chat.
func WithChatRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.chatLimiter = middleware
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	settings := &routeSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	router := mux.NewRouter()

	if settings.otelService != "" {
		router.Use(otelmux.Middleware(settings.otelService,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health"
			}),
		))
	}

	router.HandleFunc("/", handlers.Root).Methods(http.MethodGet)
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	var chatHandler http.Handler = http.HandlerFunc(handlers.Chat)
	if settings.chatLimiter != nil {
		chatHandler = settings.chatLimiter(chatHandler)
	}
	router.Handle("/chat", chatHandler).Methods(http.MethodPost)

	router.HandleFunc("/webhook/gumroad", handlers.GumroadWebhook).Methods(http.MethodPost)

	adminRouter := router.PathPrefix("/admin").Subrouter()
	adminRouter.Use(ownerTokenMiddleware(config.Security.OwnerToken))
	adminRouter.HandleFunc("/audit", handlers.AdminAudit).Methods(http.MethodGet)
	adminRouter.HandleFunc("/memory", handlers.AdminMemory).Methods(http.MethodGet)
	adminRouter.HandleFunc("/plans", handlers.AdminPlans).Methods(http.MethodGet)

	// Middleware only runs on matched routes, so preflights need one
	router.MatcherFunc(isPreflight).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	return router
}

// isPreflight matches OPTIONS requests without registering a method matcher,
// so unknown paths still answer 404 instead of 405.
func isPreflight(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodOptions
}
