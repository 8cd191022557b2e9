package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-prioritizer/internal/service"
	"github.com/BuzzLyutic/task-prioritizer/pkg/respond"
)

type RouterConfig struct {
	AdminToken     string
	AllowedOrigins []string
}

func NewRouter(srv *service.TaskService, cfg RouterConfig, logger *zap.Logger) http.Handler {
	tasks := NewTaskHandler(srv, logger)
	priorities := NewPriorityHandler(srv, logger)
	admin := NewAdminHandler(srv, cfg.AdminToken, logger)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, r, http.StatusOK, "Task Manager API is running")
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", tasks.List)
			r.Post("/", tasks.Create)
			r.Get("/{id}", tasks.Get)
			r.Put("/{id}", tasks.Update)
			r.Put("/{id}/timer", tasks.UpdateTimer)
		})

		r.Route("/priorities", func(r chi.Router) {
			r.Get("/", priorities.GetRules)
			r.Post("/", priorities.SetRules)
			r.Post("/refresh", priorities.Refresh)
		})

		r.Get("/stats", tasks.Stats)

		r.With(admin.RequireToken).Delete("/admin/tasks", admin.DeleteAll)
	})

	return r
}
