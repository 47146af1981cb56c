package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"sitescout/internal/config"
)

func NewRouter(cfg config.Config, h Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Group(func(p chi.Router) {
		p.Use(h.RequireIdentity)
		p.Post("/create-task", h.CreateTask)
		p.Post("/create-task/", h.CreateTask)
		p.Get("/run-task/{taskID}", h.RunTask)
		p.Get("/task-status/{taskID}", h.TaskStatus)
		p.Patch("/update-task/{taskID}", h.UpdateTask)
		p.Delete("/delete-task/{taskID}", h.DeleteTask)
	})

	return r
}
