package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"card-parlor/internal/config"
	"card-parlor/internal/liveroom"
	"card-parlor/internal/reconcile"
)

func NewRouter(db Pinger, cfg config.ServerConfig, scheduler *reconcile.Scheduler, rooms *liveroom.Store, wsHandler http.HandlerFunc) *chi.Mux {
	adminHandlers := NewAdminHandlers(db, scheduler, rooms)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Get("/ws", wsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Route("/reconciliation", func(r chi.Router) {
				r.Get("/status", adminHandlers.Status())
				r.Put("/config", adminHandlers.UpdateConfig())
				r.Post("/reset-stats", adminHandlers.ResetStats())
				r.Post("/force/{room_id}", adminHandlers.ForceReconcile())
			})
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
