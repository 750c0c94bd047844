package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	custommiddleware "github.com/mmeshcher/point-service/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
// Спаны и HTTP-метрики пишутся в глобальные провайдеры OpenTelemetry;
// пока экспорт не включён, это no-op.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(otelhttp.NewMiddleware(ServiceName))
	r.Use(chimiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/health", h.Health)

	r.Route("/api/v1/points", func(r chi.Router) {
		r.Get("/", h.ListPoints)
		r.Post("/", h.AddPoints)

		r.Get("/user/{userId}", h.GetUserPoints)
		r.Get("/user/{userId}/total", h.GetUserTotal)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	return r
}
