package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"keyserve/internal/config"
	apperrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	"keyserve/internal/store"
	"keyserve/pkg/contracts/domain"
)

// listConcurrency bounds parallel record fetches when listing licenses.
const listConcurrency = 8

// AdminService implements the administrative license operations.
type AdminService struct {
	records *store.RecordStore
	cfg     config.LicenseConfig
	logger  *slog.Logger
	metrics *license.Metrics
	now     func() time.Time
}

// NewAdminService creates the service. metrics may be nil in tests.
func NewAdminService(records *store.RecordStore, cfg config.LicenseConfig, logger *slog.Logger, metrics *license.Metrics) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		records: records,
		cfg:     cfg,
		logger:  infrastructure.WithComponent(logger, "admin_service"),
		metrics: metrics,
		now:     time.Now,
	}
}

func licenseInfo(l *license.License, now time.Time) domain.LicenseInfo {
	machines := make([]domain.MachineInfo, 0, len(l.Machines))
	for _, m := range l.Machines {
		machines = append(machines, domain.MachineInfo{
			HWID:             m.HWID,
			MachineName:      m.MachineName,
			ActivatedAt:      m.ActivatedAt,
			ActivatedAtHuman: license.HumanTime(m.ActivatedAt),
		})
	}
	return domain.LicenseInfo{
		Key:            l.Key,
		Tier:           l.Tier,
		TierName:       l.EffectiveTier().DisplayName,
		Status:         string(l.StatusAt(now)),
		CreatedAt:      l.CreatedAt,
		CreatedAtHuman: license.HumanTime(l.CreatedAt),
		ExpiresAt:      l.ExpiresAt,
		ExpiresAtHuman: license.HumanTime(l.ExpiresAt),
		DaysRemaining:  daysRemaining(l.ExpiresAt, now),
		Revoked:        l.Revoked,
		RevokedAt:      l.RevokedAt,
		Machines:       machines,
		MachinesUsed:   len(l.Machines),
		MaxMachines:    l.MaxMachines(),
		LastValidated:  l.LastValidated,
		Note:           l.Note,
	}
}

// Generate creates a new license for the requested tier. Duration and
// machine capacity default from the tier catalog and can be overridden
// per license.
func (s *AdminService) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "generate", start)

	tier, ok := license.LookupTier(req.Tier)
	if !ok {
		s.metrics.RecordAdminOp(ctx, "generate", "unknown_tier")
		return nil, fmt.Errorf("%w: %q is not one of %s", apperrors.ErrUnknownTier, req.Tier, strings.Join(license.TierNames(), ", "))
	}

	key, err := license.GenerateKey(s.cfg.KeyPrefix)
	if err != nil {
		s.metrics.RecordAdminOp(ctx, "generate", "error")
		return nil, err
	}

	days := tier.DurationDays
	if req.DurationDays != nil {
		days = *req.DurationDays
	}

	// Zero or absent max_machines means the tier default; the override is
	// stored only when it actually differs from it.
	var override *int
	if req.MaxMachines != nil && *req.MaxMachines > 0 && *req.MaxMachines != tier.MaxMachines {
		v := *req.MaxMachines
		override = &v
	}

	now := s.now()
	lic := &license.License{
		Key:                 key,
		Tier:                tier.Name,
		CreatedAt:           now.Unix(),
		ExpiresAt:           now.Unix() + int64(days)*86400,
		Machines:            []license.Machine{},
		MaxMachinesOverride: override,
		Note:                req.Note,
	}
	if err := s.records.Save(ctx, lic); err != nil {
		s.metrics.RecordAdminOp(ctx, "generate", "error")
		return nil, err
	}

	s.metrics.RecordAdminOp(ctx, "generate", "ok")
	s.logger.InfoContext(ctx, "license generated",
		slog.String("key", key),
		slog.String("tier", tier.Name),
		slog.Int("duration_days", days))

	info := licenseInfo(lic, now)
	return &domain.GenerateResponse{Success: true, License: info}, nil
}

// loadAll fetches every license record, tolerating keys deleted between
// the index read and the record fetch.
func (s *AdminService) loadAll(ctx context.Context) ([]*license.License, error) {
	keys, err := s.records.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		lics = make([]*license.License, 0, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			lic, err := s.records.Get(gctx, key)
			if errors.Is(err, apperrors.ErrLicenseNotFound) {
				return nil
			}
			if errors.Is(err, apperrors.ErrCorruptRecord) {
				s.logger.WarnContext(gctx, "skipping undecodable license record",
					slog.String("key", key),
					slog.String("error", err.Error()))
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			lics = append(lics, lic)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lics, nil
}

// List returns every license, newest first. Ties on creation time break
// by key so the order is deterministic.
func (s *AdminService) List(ctx context.Context) (*domain.ListResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "list", start)

	lics, err := s.loadAll(ctx)
	if err != nil {
		s.metrics.RecordAdminOp(ctx, "list", "error")
		return nil, err
	}

	sort.Slice(lics, func(i, j int) bool {
		if lics[i].CreatedAt != lics[j].CreatedAt {
			return lics[i].CreatedAt > lics[j].CreatedAt
		}
		return lics[i].Key < lics[j].Key
	})

	now := s.now()
	infos := make([]domain.LicenseInfo, 0, len(lics))
	for _, l := range lics {
		infos = append(infos, licenseInfo(l, now))
	}

	s.metrics.RecordAdminOp(ctx, "list", "ok")
	return &domain.ListResponse{Licenses: infos, Count: len(infos)}, nil
}

// Stats aggregates the license population. Monthly revenue counts the
// tier price of each currently active license.
func (s *AdminService) Stats(ctx context.Context) (*domain.StatsResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "stats", start)

	lics, err := s.loadAll(ctx)
	if err != nil {
		s.metrics.RecordAdminOp(ctx, "stats", "error")
		return nil, err
	}

	now := s.now()
	stats := &domain.StatsResponse{ByTier: make(map[string]int)}
	for _, l := range lics {
		stats.Total++
		stats.ByTier[l.Tier]++
		stats.MachinesBound += len(l.Machines)
		switch l.StatusAt(now) {
		case license.StatusActive:
			stats.Active++
			stats.MonthlyRevenue += l.EffectiveTier().PriceUSD
		case license.StatusExpired:
			stats.Expired++
		case license.StatusRevoked:
			stats.Revoked++
		}
	}

	s.metrics.RecordAdminOp(ctx, "stats", "ok")
	return stats, nil
}

// Revoke disables a license. Revoking an already revoked license succeeds.
func (s *AdminService) Revoke(ctx context.Context, key string) (*domain.OperationResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "revoke", start)

	now := s.now()
	_, err := s.records.Mutate(ctx, key, func(l *license.License) error {
		l.Revoked = true
		l.RevokedAt = now.Unix()
		return nil
	})
	if err != nil {
		s.metrics.RecordAdminOp(ctx, "revoke", "error")
		return nil, err
	}

	s.metrics.RecordAdminOp(ctx, "revoke", "ok")
	s.logger.InfoContext(ctx, "license revoked",
		slog.String("key", key))
	return &domain.OperationResponse{Success: true, Message: "License revoked"}, nil
}

// Extend moves the expiry forward by days from the later of the current
// expiry and now, and clears any revocation. Zero days is a pure
// un-revoke.
func (s *AdminService) Extend(ctx context.Context, key string, days int) (*domain.LicenseInfo, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "extend", start)

	if days < 0 {
		s.metrics.RecordAdminOp(ctx, "extend", "invalid")
		return nil, apperrors.BadRequest("days must not be negative")
	}

	now := s.now()
	updated, err := s.records.Mutate(ctx, key, func(l *license.License) error {
		l.Extend(days, now)
		return nil
	})
	if err != nil {
		s.metrics.RecordAdminOp(ctx, "extend", "error")
		return nil, err
	}

	s.metrics.RecordAdminOp(ctx, "extend", "ok")
	s.logger.InfoContext(ctx, "license extended",
		slog.String("key", key),
		slog.Int("days", days))

	info := licenseInfo(updated, now)
	return &info, nil
}

// Delete permanently removes a license record. The trial claim for any
// hardware that used this key is kept, so deletion cannot be used to farm
// fresh trials. Deleting an absent key succeeds.
func (s *AdminService) Delete(ctx context.Context, key string) (*domain.OperationResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "delete", start)

	existed, err := s.records.Delete(ctx, key)
	if err != nil {
		s.metrics.RecordAdminOp(ctx, "delete", "error")
		return nil, err
	}

	s.metrics.RecordAdminOp(ctx, "delete", "ok")
	msg := "License deleted"
	if !existed {
		msg = "License did not exist"
	}
	s.logger.InfoContext(ctx, "license deleted",
		slog.String("key", key),
		slog.Bool("existed", existed))
	return &domain.OperationResponse{Success: true, Message: msg}, nil
}

// DeactivateMachine unbinds a machine, freeing its slot. Unbinding a
// machine that was never activated still succeeds.
func (s *AdminService) DeactivateMachine(ctx context.Context, key, hwid string) (*domain.OperationResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "deactivate", start)

	var removed bool
	_, err := s.records.Mutate(ctx, key, func(l *license.License) error {
		removed = l.UnbindMachine(hwid)
		return nil
	})
	if err != nil {
		s.metrics.RecordAdminOp(ctx, "deactivate", "error")
		return nil, err
	}

	s.metrics.RecordAdminOp(ctx, "deactivate", "ok")
	msg := "Machine deactivated"
	if !removed {
		msg = "Machine was not activated"
	}
	s.logger.InfoContext(ctx, "machine deactivated",
		slog.String("key", key),
		slog.Bool("removed", removed))
	return &domain.OperationResponse{Success: true, Message: msg}, nil
}
