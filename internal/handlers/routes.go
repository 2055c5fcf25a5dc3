package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidcurate/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users        UserStore
	Sessions     SessionManager
	Profiles     ProfileReader
	Catalog      CatalogService
	LoginLimiter middleware.RateLimiter
	HealthChecks map[string]Pinger
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Everything
// under /api/v1/admin/ except the session endpoints requires the admin role.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Checks: deps.HealthChecks}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	admin := AdminGate{Sessions: deps.Sessions, Profiles: deps.Profiles}
	videos := VideoHandler{Catalog: deps.Catalog}

	loginLimit := middleware.Limit(deps.LoginLimiter, "login", time.Minute)

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /api/v1/auth/login", loginLimit(http.HandlerFunc(auth.Login)))
	mux.Handle("POST /api/v1/auth/signup", loginLimit(http.HandlerFunc(auth.SignUp)))
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.Logout)

	mux.HandleFunc("GET /api/v1/admin/session", admin.Session)
	mux.HandleFunc("GET /api/v1/admin/session/events", admin.Events)

	mux.Handle("GET /api/v1/admin/videos", admin.RequireAdmin(http.HandlerFunc(videos.List)))
	mux.Handle("POST /api/v1/admin/videos", admin.RequireAdmin(http.HandlerFunc(videos.Create)))
	mux.Handle("PUT /api/v1/admin/videos/{id}", admin.RequireAdmin(http.HandlerFunc(videos.Update)))
	mux.Handle("DELETE /api/v1/admin/videos/{id}", admin.RequireAdmin(http.HandlerFunc(videos.Delete)))
}
