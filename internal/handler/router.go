package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/dvmnase/bonus-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware системы начисления бонусов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/batch", h.ProcessBatch)
		r.Post("/batch/file", h.ProcessBatchFile)

		r.Get("/transactions", h.GetTransactions)
		r.Get("/report/summary", h.GetReportSummary)
		r.Get("/log", h.GetOperationLog)

		r.Delete("/history", h.ResetHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
