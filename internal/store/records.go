package store

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/license"
)

// Key layout in the backing store.
const (
	licenseKeyPrefix = "license:"
	trialHWIDPrefix  = "trial_hwid:"
	allKeysSet       = "all_license_keys"
)

// RecordStore persists license records and the trial hardware-ID index on
// a KV backend.
type RecordStore struct {
	kv KV
}

// NewRecordStore wraps kv with the license record schema.
func NewRecordStore(kv KV) *RecordStore {
	return &RecordStore{kv: kv}
}

func licenseKey(key string) string { return licenseKeyPrefix + key }
func trialKey(hwid string) string  { return trialHWIDPrefix + hwid }

func decodeLicense(raw string) (*license.License, error) {
	var lic license.License
	if err := json.Unmarshal([]byte(raw), &lic); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptRecord, err)
	}
	lic.Normalize()
	return &lic, nil
}

// Get loads the record for key. Absent keys map to ErrLicenseNotFound.
func (s *RecordStore) Get(ctx context.Context, key string) (*license.License, error) {
	raw, ok, err := s.kv.Get(ctx, licenseKey(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, apperrors.ErrLicenseNotFound
	}
	return decodeLicense(raw)
}

// Save writes the record and indexes its key in the global key set.
func (s *RecordStore) Save(ctx context.Context, lic *license.License) error {
	raw, err := json.Marshal(lic)
	if err != nil {
		return fmt.Errorf("encode license record: %w", err)
	}
	if err := s.kv.Set(ctx, licenseKey(lic.Key), string(raw)); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := s.kv.SAdd(ctx, allKeysSet, lic.Key); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Mutate applies fn to the record for key under the KV's concurrency
// control and returns the updated record. fn may return a domain error to
// abort the write.
func (s *RecordStore) Mutate(ctx context.Context, key string, fn func(*license.License) error) (*license.License, error) {
	var updated *license.License
	err := s.kv.Update(ctx, licenseKey(key), func(current string, exists bool) (string, error) {
		if !exists {
			return "", apperrors.ErrLicenseNotFound
		}
		lic, err := decodeLicense(current)
		if err != nil {
			return "", err
		}
		if err := fn(lic); err != nil {
			return "", err
		}
		raw, err := json.Marshal(lic)
		if err != nil {
			return "", fmt.Errorf("encode license record: %w", err)
		}
		updated = lic
		return string(raw), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record and its key-set entry. Deleting an absent key
// reports whether a record existed.
func (s *RecordStore) Delete(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, licenseKey(key))
	if err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := s.kv.Delete(ctx, licenseKey(key)); err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := s.kv.SRem(ctx, allKeysSet, key); err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Keys returns every known license key, in no particular order.
func (s *RecordStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.SMembers(ctx, allKeysSet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return keys, nil
}

// ClaimTrial records that hwid has consumed its trial, pointing at the
// issued key. Returns false when the hwid already claimed a trial; the
// claim survives deletion of the license itself.
func (s *RecordStore) ClaimTrial(ctx context.Context, hwid, key string) (bool, error) {
	ok, err := s.kv.SetNX(ctx, trialKey(hwid), key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// TrialFor returns the trial key previously issued to hwid, if any.
func (s *RecordStore) TrialFor(ctx context.Context, hwid string) (string, bool, error) {
	key, ok, err := s.kv.Get(ctx, trialKey(hwid))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return key, ok, nil
}

// ReleaseTrial removes the trial claim for hwid.
func (s *RecordStore) ReleaseTrial(ctx context.Context, hwid string) error {
	if err := s.kv.Delete(ctx, trialKey(hwid)); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping reports whether the backing store is reachable.
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}
