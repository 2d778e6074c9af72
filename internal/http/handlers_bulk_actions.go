package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
	apperrors "github.com/target/redis-bulk-actions/internal/errors"
)

// BulkActions is the service surface used by the bulk action handlers.
type BulkActions interface {
	Create(ctx context.Context, req model.CreateBulkActionRequest) (model.Overview, error)
	Overview(id string) (model.Overview, error)
	List() []model.Overview
	Abort(ctx context.Context, id string) (model.Overview, error)
	SubscribeToReport(id string, ch bulk.Channel) (*bulk.Job, error)
	UnsubscribeFromReport(id string, ch bulk.Channel)
	NodeInfo(ctx context.Context, databaseID string) ([]model.NodeInfo, error)
}

// OverviewSubscriber delivers overview pushes for one job.
type OverviewSubscriber interface {
	Subscribe(jobID string) (func(), <-chan model.Overview)
}

// BulkActionHandlers serves the bulk action API.
type BulkActionHandlers struct {
	Svc       BulkActions
	Overviews OverviewSubscriber // Optional: the overview stream returns 404 without it
	Projector Projector          // Optional: defaults to JMESPath
	Logger    *slog.Logger
}

func (h *BulkActionHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *BulkActionHandlers) projector() Projector {
	if h.Projector == nil {
		return jmespathProjector{}
	}
	return h.Projector
}

// Create starts a bulk action against the database named in the path.
func (h *BulkActionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBulkActionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if db := strings.TrimSpace(r.PathValue("db")); db != "" {
		req.DatabaseID = db
	}

	ov, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, ov)
}

// List returns the overviews of every live bulk action.
func (h *BulkActionHandlers) List(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"items": h.Svc.List()})
}

// Get returns one overview, optionally projected with ?query=.
func (h *BulkActionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if err := h.projector().Validate(query); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: err})
		return
	}

	ov, err := h.Svc.Overview(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if query == "" {
		WriteJSON(w, http.StatusOK, ov)
		return
	}

	projected, err := h.projector().Project(query, ov)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, projected)
}

// Abort stops a running bulk action.
func (h *BulkActionHandlers) Abort(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Svc.Abort(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ov)
}

// Nodes lists the primary nodes of a database.
func (h *BulkActionHandlers) Nodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.Svc.NodeInfo(r.Context(), r.PathValue("db"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": nodes})
}

// Report streams the affected keys of a bulk action as server-sent events.
func (h *BulkActionHandlers) Report(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Svc.Overview(id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ch := startSSE(w)
	defer ch.Close()

	job, err := h.Svc.SubscribeToReport(id, ch)
	if err != nil {
		// Evicted between the lookup and the subscription.
		_ = ch.Emit("error", map[string]string{"error": err.Error()})
		return
	}
	defer h.Svc.UnsubscribeFromReport(id, ch)

	if job.Status().IsTerminal() {
		_ = ch.Emit(model.EventReportComplete, model.ReportComplete{Overview: job.Overview()})
	}

	select {
	case <-ch.Done():
	case <-r.Context().Done():
	}
	h.logger().DebugContext(r.Context(), "report stream closed", "job_id", id)
}

// OverviewStream streams overview pushes of a bulk action until it reaches a terminal status.
func (h *BulkActionHandlers) OverviewStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	current, err := h.Svc.Overview(id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if h.Overviews == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: string(apperrors.ErrCodeNotFound),
			Err:     apperrors.NotFound("overview streaming is disabled"),
		})
		return
	}

	unsubscribe, updates := h.Overviews.Subscribe(id)
	defer unsubscribe()

	ch := startSSE(w)
	defer ch.Close()

	if ch.Emit(model.EventOverview, current) != nil || current.Status.IsTerminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ov, ok := <-updates:
			if !ok {
				return
			}
			if ch.Emit(model.EventOverview, ov) != nil || ov.Status.IsTerminal() {
				return
			}
		}
	}
}

func (h *BulkActionHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if code := apperrors.GetCode(err); code == "" || code == apperrors.ErrCodeInternal {
		h.logger().ErrorContext(r.Context(), "bulk action request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	WriteAppError(w, err)
}
