package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/arenachess/backend/internal/arena"
	"github.com/arenachess/backend/internal/registry"
	"github.com/arenachess/backend/internal/ws"
)

func SetupRoutes(reg *registry.Registry, dir *arena.Directory, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(reg, dir, log))
	return r
}
