// Package services contains the business logic between the HTTP transport
// and the record store: client license operations, the admin surface and
// health checks.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keyserve/internal/config"
	apperrors "keyserve/internal/errors"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	"keyserve/internal/store"
	"keyserve/pkg/contracts/domain"
)

// trialNote marks records issued through the self-serve trial path.
const trialNote = "Auto-generated trial"

// LicenseService implements the client-facing license operations.
type LicenseService struct {
	records *store.RecordStore
	cfg     config.LicenseConfig
	logger  *slog.Logger
	metrics *license.Metrics
	now     func() time.Time
}

// NewLicenseService creates the service. metrics may be nil in tests.
func NewLicenseService(records *store.RecordStore, cfg config.LicenseConfig, logger *slog.Logger, metrics *license.Metrics) *LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseService{
		records: records,
		cfg:     cfg,
		logger:  infrastructure.WithComponent(logger, "license_service"),
		metrics: metrics,
		now:     time.Now,
	}
}

// daysRemaining floors at zero; partial days count as zero.
func daysRemaining(expiresAt int64, now time.Time) int {
	d := (expiresAt - now.Unix()) / 86400
	if d < 0 {
		return 0
	}
	return int(d)
}

// Validate checks whether key is usable on the machine identified by hwid.
// Policy failures come back inside the response with Valid false and leave
// the record untouched; a successful validation stamps last_validated.
// Only infrastructure problems surface as errors.
func (s *LicenseService) Validate(ctx context.Context, key, hwid string) (*domain.ValidateResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "validate", start)

	now := s.now()
	var (
		tier        license.Tier
		used, limit int
		expiresAt   int64
	)
	_, err := s.records.Mutate(ctx, key, func(l *license.License) error {
		switch l.StatusAt(now) {
		case license.StatusRevoked:
			return apperrors.ErrLicenseRevoked
		case license.StatusExpired:
			return apperrors.ErrLicenseExpired
		}
		if l.FindMachine(hwid) == nil {
			return apperrors.ErrMachineNotActivated
		}
		l.LastValidated = now.Unix()
		tier = l.EffectiveTier()
		used = len(l.Machines)
		limit = l.MaxMachines()
		expiresAt = l.ExpiresAt
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrLicenseNotFound):
		s.metrics.RecordValidation(ctx, "not_found")
		return &domain.ValidateResponse{Valid: false, Error: "Invalid license key"}, nil
	case errors.Is(err, apperrors.ErrLicenseRevoked):
		s.metrics.RecordValidation(ctx, "revoked")
		return &domain.ValidateResponse{Valid: false, Status: string(license.StatusRevoked), Error: "License has been revoked"}, nil
	case errors.Is(err, apperrors.ErrLicenseExpired):
		s.metrics.RecordValidation(ctx, "expired")
		return &domain.ValidateResponse{Valid: false, Status: string(license.StatusExpired), Error: "License has expired"}, nil
	case errors.Is(err, apperrors.ErrMachineNotActivated):
		s.metrics.RecordValidation(ctx, "machine_not_activated")
		return &domain.ValidateResponse{Valid: false, Status: string(license.StatusActive), Error: "Machine not activated for this license"}, nil
	default:
		s.metrics.RecordValidation(ctx, "error")
		return nil, err
	}

	s.metrics.RecordValidation(ctx, "valid")
	s.logger.InfoContext(ctx, "license validated",
		slog.String("key", key),
		slog.String("tier", tier.Name))

	return &domain.ValidateResponse{
		Valid:          true,
		Status:         string(license.StatusActive),
		Tier:           tier.Name,
		TierName:       tier.DisplayName,
		Features:       tier.Features,
		MaxProfiles:    tier.MaxProfiles,
		ExpiresAt:      expiresAt,
		ExpiresAtHuman: license.HumanTime(expiresAt),
		DaysRemaining:  daysRemaining(expiresAt, now),
		MachinesUsed:   used,
		MaxMachines:    limit,
	}, nil
}

// Activate binds hwid to the license. Re-activating an already bound
// machine succeeds without consuming a slot; the original activation
// timestamp and name are preserved.
func (s *LicenseService) Activate(ctx context.Context, key, hwid, machineName string) (*domain.ActivateResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "activate", start)

	var (
		alreadyBound bool
		used, limit  int
		tier         license.Tier
		expiresAt    int64
	)
	_, err := s.records.Mutate(ctx, key, func(l *license.License) error {
		now := s.now()
		switch l.StatusAt(now) {
		case license.StatusRevoked:
			return apperrors.ErrLicenseRevoked
		case license.StatusExpired:
			return apperrors.ErrLicenseExpired
		}

		tier = l.EffectiveTier()
		expiresAt = l.ExpiresAt
		limit = l.MaxMachines()
		if l.FindMachine(hwid) != nil {
			alreadyBound = true
			used = len(l.Machines)
			return nil
		}
		if len(l.Machines) >= limit {
			used = len(l.Machines)
			return apperrors.ErrMachineLimitReached
		}
		l.BindMachine(hwid, machineName, now)
		l.LastValidated = now.Unix()
		used = len(l.Machines)
		return nil
	})

	switch {
	case err == nil:
		result := "activated"
		if alreadyBound {
			result = "already_bound"
		}
		s.metrics.RecordActivation(ctx, result)
		s.logger.InfoContext(ctx, "machine activation",
			slog.String("key", key),
			slog.Bool("already_bound", alreadyBound),
			slog.Int("machines_used", used))
		return &domain.ActivateResponse{
			Success:      true,
			AlreadyBound: alreadyBound,
			Tier:         tier.Name,
			TierName:     tier.DisplayName,
			Features:     tier.Features,
			MaxProfiles:  tier.MaxProfiles,
			ExpiresAt:    expiresAt,
			MachinesUsed: used,
			MaxMachines:  limit,
		}, nil
	case errors.Is(err, apperrors.ErrLicenseNotFound):
		s.metrics.RecordActivation(ctx, "not_found")
		return &domain.ActivateResponse{Success: false, Error: "Invalid license key"}, nil
	case errors.Is(err, apperrors.ErrLicenseRevoked):
		s.metrics.RecordActivation(ctx, "revoked")
		return &domain.ActivateResponse{Success: false, Error: "License has been revoked"}, nil
	case errors.Is(err, apperrors.ErrLicenseExpired):
		s.metrics.RecordActivation(ctx, "expired")
		return &domain.ActivateResponse{Success: false, Error: "License has expired"}, nil
	case errors.Is(err, apperrors.ErrMachineLimitReached):
		s.metrics.RecordActivation(ctx, "limit_reached")
		return &domain.ActivateResponse{
			Success:      false,
			Error:        fmt.Sprintf("Machine limit reached (%d/%d)", used, limit),
			MachinesUsed: used,
			MaxMachines:  limit,
		}, nil
	default:
		s.metrics.RecordActivation(ctx, "error")
		return nil, err
	}
}

// IssueTrial creates a trial license bound to hwid. Each hardware ID gets
// exactly one trial, ever; the claim is taken atomically before the record
// is written so two concurrent requests cannot both succeed.
func (s *LicenseService) IssueTrial(ctx context.Context, hwid, machineName string) (*domain.TrialResponse, error) {
	start := s.now()
	defer s.metrics.RecordDuration(ctx, "trial", start)

	key, err := license.GenerateKey(s.cfg.KeyPrefix)
	if err != nil {
		s.metrics.RecordTrial(ctx, "error")
		return nil, err
	}

	claimed, err := s.records.ClaimTrial(ctx, hwid, key)
	if err != nil {
		s.metrics.RecordTrial(ctx, "error")
		return nil, err
	}
	if !claimed {
		s.metrics.RecordTrial(ctx, "already_used")
		if prior, ok, err := s.records.TrialFor(ctx, hwid); err == nil && ok {
			s.logger.InfoContext(ctx, "trial refused, hardware already claimed one",
				slog.String("hwid", hwid),
				slog.String("prior_key", prior))
		}
		return &domain.TrialResponse{Success: false, Error: "Trial already used on this machine"}, nil
	}

	now := s.now()
	days := s.cfg.TrialDurationDays
	trialTier := license.TierOrDefault("trial")
	lic := &license.License{
		Key:       key,
		Tier:      trialTier.Name,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Unix() + int64(days)*86400,
		Machines: []license.Machine{{
			HWID:        hwid,
			MachineName: machineName,
			ActivatedAt: now.Unix(),
		}},
		LastValidated: now.Unix(),
		Note:          trialNote,
	}
	if err := s.records.Save(ctx, lic); err != nil {
		// Release the claim so the client can retry.
		if relErr := s.records.ReleaseTrial(ctx, hwid); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release trial claim after save error",
				slog.String("hwid", hwid),
				slog.String("error", relErr.Error()))
		}
		s.metrics.RecordTrial(ctx, "error")
		return nil, err
	}

	s.metrics.RecordTrial(ctx, "issued")
	s.logger.InfoContext(ctx, "trial issued",
		slog.String("key", key),
		slog.Int("days", days))

	return &domain.TrialResponse{
		Success:        true,
		Key:            key,
		Tier:           trialTier.Name,
		TierName:       trialTier.DisplayName,
		Features:       trialTier.Features,
		MaxProfiles:    trialTier.MaxProfiles,
		ExpiresAt:      lic.ExpiresAt,
		ExpiresAtHuman: license.HumanTime(lic.ExpiresAt),
		DaysRemaining:  daysRemaining(lic.ExpiresAt, now),
	}, nil
}
