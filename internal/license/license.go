// Package license holds the core license domain model: the stored record,
// the tier catalog, status derivation and key generation.
package license

import (
	"time"
)

// Status is the derived lifecycle state of a license.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// HumanTimeFormat renders epoch timestamps for human-facing fields.
const HumanTimeFormat = "2006-01-02 15:04:05"

// Machine is a hardware binding on a license.
type Machine struct {
	HWID        string `json:"hwid"`
	MachineName string `json:"machine_name,omitempty"`
	ActivatedAt int64  `json:"activated_at"`
}

// License is the stored record for a single key. Timestamps are epoch
// seconds (UTC).
type License struct {
	Key                 string    `json:"key"`
	Tier                string    `json:"tier"`
	CreatedAt           int64     `json:"created_at"`
	ExpiresAt           int64     `json:"expires_at"`
	Revoked             bool      `json:"revoked"`
	RevokedAt           int64     `json:"revoked_at,omitempty"`
	Machines            []Machine `json:"machines"`
	MaxMachinesOverride *int      `json:"max_machines_override,omitempty"`
	LastValidated       int64     `json:"last_validated,omitempty"`
	Note                string    `json:"notes,omitempty"`
}

// Normalize repairs missing fields on records read from the store so
// downstream code never sees a nil machine list or an empty tier.
func (l *License) Normalize() {
	if l.Machines == nil {
		l.Machines = []Machine{}
	}
	if l.Tier == "" {
		l.Tier = DefaultTier
	}
}

// StatusAt derives the lifecycle state at the given instant. Revocation
// takes precedence over expiry. A license is valid through the exact
// expiry instant and lapses only after it.
func (l *License) StatusAt(now time.Time) Status {
	if l.Revoked {
		return StatusRevoked
	}
	if now.Unix() > l.ExpiresAt {
		return StatusExpired
	}
	return StatusActive
}

// EffectiveTier resolves the record's tier against the catalog, falling
// back to the default for stale names.
func (l *License) EffectiveTier() Tier {
	return TierOrDefault(l.Tier)
}

// MaxMachines is the machine capacity: the per-license override when set
// and positive, otherwise the tier default.
func (l *License) MaxMachines() int {
	if l.MaxMachinesOverride != nil && *l.MaxMachinesOverride > 0 {
		return *l.MaxMachinesOverride
	}
	return l.EffectiveTier().MaxMachines
}

// FindMachine returns the binding for hwid, or nil.
func (l *License) FindMachine(hwid string) *Machine {
	for i := range l.Machines {
		if l.Machines[i].HWID == hwid {
			return &l.Machines[i]
		}
	}
	return nil
}

// BindMachine adds a binding for hwid if absent. When the hwid is already
// bound the existing binding is kept unchanged and false is returned.
func (l *License) BindMachine(hwid, name string, now time.Time) bool {
	if l.FindMachine(hwid) != nil {
		return false
	}
	l.Machines = append(l.Machines, Machine{
		HWID:        hwid,
		MachineName: name,
		ActivatedAt: now.Unix(),
	})
	return true
}

// UnbindMachine removes the binding for hwid. Removing an unbound hwid is
// a no-op and returns false.
func (l *License) UnbindMachine(hwid string) bool {
	for i := range l.Machines {
		if l.Machines[i].HWID == hwid {
			l.Machines = append(l.Machines[:i], l.Machines[i+1:]...)
			return true
		}
	}
	return false
}

// Extend moves the expiry forward by days, measured from the later of the
// current expiry and now, and clears any revocation.
func (l *License) Extend(days int, now time.Time) {
	base := l.ExpiresAt
	if n := now.Unix(); n > base {
		base = n
	}
	l.ExpiresAt = base + int64(days)*86400
	l.Revoked = false
}

// HumanTime renders an epoch-second timestamp in the fixed human format, UTC.
func HumanTime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(HumanTimeFormat)
}
