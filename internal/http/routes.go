package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	BulkActions BulkActions
	// Optional: overview pushes for the overview stream endpoint.
	Overviews OverviewSubscriber
	// Optional: Prometheus handler mounted at /metrics.
	Metrics http.Handler
	// Optional: dependency check behind /readyz.
	Ready  ReadinessCheck
	Logger *slog.Logger // Optional
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.Handle("GET /readyz", readyHandler(services.Ready, services.Logger))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	if services.BulkActions == nil {
		return mux
	}

	h := &BulkActionHandlers{
		Svc:       services.BulkActions,
		Overviews: services.Overviews,
		Logger:    services.Logger,
	}
	mux.HandleFunc("POST /api/databases/{db}/bulk-actions", h.Create)
	mux.HandleFunc("GET /api/databases/{db}/nodes", h.Nodes)
	mux.HandleFunc("GET /api/bulk-actions", h.List)
	mux.HandleFunc("GET /api/bulk-actions/{id}", h.Get)
	mux.HandleFunc("DELETE /api/bulk-actions/{id}", h.Abort)
	mux.HandleFunc("GET /api/bulk-actions/{id}/report", h.Report)
	mux.HandleFunc("GET /api/bulk-actions/{id}/overview/stream", h.OverviewStream)

	return mux
}
