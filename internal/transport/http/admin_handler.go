package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/services"
	"keyserve/pkg/contracts/domain"
)

// AdminHandler serves the administrative license endpoints. Unlike the
// client surface, failures here are RFC 7807 problem responses with real
// HTTP statuses.
type AdminHandler struct {
	service *services.AdminService
	logger  *slog.Logger
}

// NewAdminHandler creates the handler.
func NewAdminHandler(service *services.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "admin")),
	}
}

// Routes returns the router for the admin endpoints. Authentication is
// applied by the caller.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/generate", h.Generate)
	r.Get("/licenses", h.List)
	r.Get("/stats", h.Stats)
	r.Post("/revoke", h.Revoke)
	r.Post("/extend", h.Extend)
	r.Post("/delete", h.Delete)
	r.Post("/deactivate", h.Deactivate)
	return r
}

func (h *AdminHandler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "admin operation failed",
		slog.String("operation", op),
		slog.String("trace_id", infrastructure.TraceIDFromContext(r.Context())),
		slog.String("error", err.Error()))
	render.Render(w, r, apperrors.MapToProblem(err, r))
}

// Generate handles POST /api/admin/generate.
func (h *AdminHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("admin-handler").Start(r.Context(), "admin_handler.generate")
	defer span.End()

	var req domain.GenerateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	resp, err := h.service.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, "generate", err)
		return
	}

	span.SetAttributes(
		attribute.String("license.tier", req.Tier),
		attribute.String("license.key", resp.License.Key),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// List handles GET /api/admin/licenses.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("admin-handler").Start(r.Context(), "admin_handler.list")
	defer span.End()

	resp, err := h.service.List(ctx)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, "list", err)
		return
	}

	span.SetAttributes(attribute.Int("licenses.count", resp.Count))
	render.JSON(w, r, resp)
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("admin-handler").Start(r.Context(), "admin_handler.stats")
	defer span.End()

	resp, err := h.service.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, "stats", err)
		return
	}

	render.JSON(w, r, resp)
}

// Revoke handles POST /api/admin/revoke.
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("admin-handler").Start(r.Context(), "admin_handler.revoke")
	defer span.End()

	var req domain.RevokeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	resp, err := h.service.Revoke(ctx, req.Key)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, "revoke", err)
		return
	}

	render.JSON(w, r, resp)
}

// Extend handles POST /api/admin/extend.
func (h *AdminHandler) Extend(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("admin-handler").Start(r.Context(), "admin_handler.extend",
		trace.WithAttributes(attribute.String("http.route", "/api/admin/extend")))
	defer span.End()

	var req domain.ExtendRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	info, err := h.service.Extend(ctx, req.Key, req.Days)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, "extend", err)
		return
	}

	render.JSON(w, r, info)
}

// Delete handles POST /api/admin/delete.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("admin-handler").Start(r.Context(), "admin_handler.delete")
	defer span.End()

	var req domain.DeleteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	resp, err := h.service.Delete(ctx, req.Key)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, "delete", err)
		return
	}

	render.JSON(w, r, resp)
}

// Deactivate handles POST /api/admin/deactivate.
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("admin-handler").Start(r.Context(), "admin_handler.deactivate")
	defer span.End()

	var req domain.DeactivateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	resp, err := h.service.DeactivateMachine(ctx, req.Key, req.HWID)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, "deactivate", err)
		return
	}

	render.JSON(w, r, resp)
}
