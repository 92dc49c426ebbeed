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

// LicenseHandler serves the client-facing license endpoints. Policy
// failures (bad key, expired, revoked, capacity) come back as 200
// responses with the failure inside the body, which is what the desktop
// clients consume; only malformed requests and infrastructure faults use
// HTTP error statuses.
type LicenseHandler struct {
	service *services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates the handler.
func NewLicenseHandler(service *services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the router for the client license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/validate", h.Validate)
	r.Post("/activate", h.Activate)
	r.Post("/trial", h.Trial)
	return r
}

// Validate handles POST /api/validate.
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("license-handler")
	ctx, span := tracer.Start(ctx, "license_handler.validate",
		trace.WithAttributes(
			attribute.String("http.route", "/api/validate"),
		),
	)
	defer span.End()

	var req domain.ValidateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	resp, err := h.service.Validate(ctx, req.Key, req.HWID)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "validate failed",
			slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	span.SetAttributes(attribute.Bool("license.valid", resp.Valid))
	render.JSON(w, r, resp)
}

// Activate handles POST /api/activate.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("license-handler")
	ctx, span := tracer.Start(ctx, "license_handler.activate",
		trace.WithAttributes(
			attribute.String("http.route", "/api/activate"),
		),
	)
	defer span.End()

	var req domain.ActivateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	resp, err := h.service.Activate(ctx, req.Key, req.HWID, req.MachineName)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "activate failed",
			slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	span.SetAttributes(attribute.Bool("activation.success", resp.Success))
	render.JSON(w, r, resp)
}

// Trial handles POST /api/trial.
func (h *LicenseHandler) Trial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("license-handler")
	ctx, span := tracer.Start(ctx, "license_handler.trial",
		trace.WithAttributes(
			attribute.String("http.route", "/api/trial"),
		),
	)
	defer span.End()

	var req domain.TrialRequest
	if err := decodeAndValidate(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	resp, err := h.service.IssueTrial(ctx, req.HWID, req.MachineName)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "trial issue failed",
			slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.MapToProblem(err, r))
		return
	}

	span.SetAttributes(attribute.Bool("trial.issued", resp.Success))
	render.JSON(w, r, resp)
}
