package api

import (
	"net/http"

	"github.com/example/trailer-shop/internal/api/middleware"
	"github.com/example/trailer-shop/internal/auth"
)

// RouterConfig holds the dependencies for the router
type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
	// Extra is mounted as-is, outside authentication (health, metrics).
	Extra map[string]http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	requireAuth := middleware.AuthMiddleware(cfg.JWTService)
	protected := func(fn http.HandlerFunc) http.Handler {
		return requireAuth(fn)
	}

	// Auth (public)
	mux.HandleFunc("POST /auth/register", cfg.AuthHandlers.Register)
	mux.HandleFunc("POST /auth/login", cfg.AuthHandlers.Login)
	mux.Handle("POST /auth/logout", protected(cfg.AuthHandlers.Logout))
	mux.Handle("GET /auth/verify", protected(cfg.AuthHandlers.Verify))

	// Service orders
	mux.Handle("POST /services", protected(cfg.Handlers.CreateServiceOrder))
	mux.Handle("GET /services", protected(cfg.Handlers.ListServiceOrders))
	mux.Handle("GET /services/{id}", protected(cfg.Handlers.GetServiceOrder))
	mux.Handle("PUT /services/{id}", protected(cfg.Handlers.UpdateServiceOrder))
	mux.Handle("DELETE /services/{id}", protected(cfg.Handlers.DeleteServiceOrder))
	mux.Handle("PUT /services/{serviceId}/tools/{toolId}/return", protected(cfg.Handlers.ReturnTool))

	for pattern, h := range cfg.Extra {
		mux.Handle(pattern, h)
	}

	return middleware.RequestLogger(mux)
}
