package services

import (
	"context"
	"log/slog"

	"keyserve/internal/store"
	"keyserve/pkg/contracts"
	"keyserve/pkg/contracts/domain"
)

// HealthService reports process liveness and backing-store readiness.
type HealthService struct {
	records *store.RecordStore
	logger  *slog.Logger
}

// NewHealthService creates the service.
func NewHealthService(records *store.RecordStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{records: records, logger: logger}
}

// Liveness always reports ok while the process can serve requests.
func (s *HealthService) Liveness(_ context.Context) *domain.HealthResponse {
	return &domain.HealthResponse{Status: "ok", Version: contracts.Version}
}

// Readiness pings the backing store; a failed ping degrades the report
// without returning an error so probes get a body either way.
func (s *HealthService) Readiness(ctx context.Context) (*domain.HealthResponse, bool) {
	if err := s.records.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "store ping failed", slog.String("error", err.Error()))
		return &domain.HealthResponse{Status: "degraded", Store: "unreachable", Version: contracts.Version}, false
	}
	return &domain.HealthResponse{Status: "ok", Store: "ok", Version: contracts.Version}, true
}
