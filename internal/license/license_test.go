package license

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusAt_Precedence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		revoked bool
		expires int64
		want    Status
	}{
		{"active", false, now.Add(24 * time.Hour).Unix(), StatusActive},
		{"expired", false, now.Add(-time.Second).Unix(), StatusExpired},
		{"valid through the exact expiry instant", false, now.Unix(), StatusActive},
		{"revoked", true, now.Add(24 * time.Hour).Unix(), StatusRevoked},
		{"revoked wins over expired", true, now.Add(-24 * time.Hour).Unix(), StatusRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lic := &License{Key: "IGTOOL-AAAA-BBBB-CCCC-DDDD", Tier: "pro", Revoked: tt.revoked, ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, lic.StatusAt(now))
		})
	}
}

func TestMaxMachines_OverrideWinsOverTier(t *testing.T) {
	lic := &License{Tier: "pro"}
	assert.Equal(t, 3, lic.MaxMachines())

	override := 7
	lic.MaxMachinesOverride = &override
	assert.Equal(t, 7, lic.MaxMachines())

	zero := 0
	lic.MaxMachinesOverride = &zero
	assert.Equal(t, 3, lic.MaxMachines(), "non-positive override falls back to the tier cap")
}

func TestBindMachine_IdempotentPerHWID(t *testing.T) {
	now := time.Now()
	lic := &License{Tier: "pro", Machines: []Machine{}}

	assert.True(t, lic.BindMachine("hw-1", "laptop", now))
	assert.False(t, lic.BindMachine("hw-1", "renamed", now.Add(time.Hour)))

	require.Len(t, lic.Machines, 1)
	assert.Equal(t, "laptop", lic.Machines[0].MachineName)
	assert.Equal(t, now.Unix(), lic.Machines[0].ActivatedAt)
}

func TestUnbindMachine(t *testing.T) {
	lic := &License{Machines: []Machine{{HWID: "hw-1"}, {HWID: "hw-2"}}}

	assert.True(t, lic.UnbindMachine("hw-1"))
	assert.False(t, lic.UnbindMachine("hw-1"))
	require.Len(t, lic.Machines, 1)
	assert.Equal(t, "hw-2", lic.Machines[0].HWID)
}

func TestExtend(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("future expiry extends from expiry", func(t *testing.T) {
		lic := &License{ExpiresAt: now.Add(48 * time.Hour).Unix()}
		lic.Extend(30, now)
		assert.Equal(t, now.Add(48*time.Hour).Unix()+30*86400, lic.ExpiresAt)
	})

	t.Run("past expiry extends from now", func(t *testing.T) {
		lic := &License{ExpiresAt: now.Add(-72 * time.Hour).Unix()}
		lic.Extend(30, now)
		assert.Equal(t, now.Unix()+30*86400, lic.ExpiresAt)
	})

	t.Run("clears revocation", func(t *testing.T) {
		lic := &License{Revoked: true, ExpiresAt: now.Unix()}
		lic.Extend(1, now)
		assert.False(t, lic.Revoked)
	})

	t.Run("zero days un-revokes without moving a future expiry", func(t *testing.T) {
		future := now.Add(10 * 24 * time.Hour).Unix()
		lic := &License{Revoked: true, ExpiresAt: future}
		lic.Extend(0, now)
		assert.False(t, lic.Revoked)
		assert.Equal(t, future, lic.ExpiresAt)
	})
}

func TestNormalize(t *testing.T) {
	lic := &License{Key: "IGTOOL-AAAA-BBBB-CCCC-DDDD"}
	lic.Normalize()

	assert.NotNil(t, lic.Machines)
	assert.Equal(t, DefaultTier, lic.Tier)
}

func TestTierOrDefault_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, "basic", TierOrDefault("platinum").Name)
	assert.Equal(t, "agency", TierOrDefault("agency").Name)
}

func TestTierCatalog(t *testing.T) {
	trial, ok := LookupTier("trial")
	require.True(t, ok)
	assert.Equal(t, "Trial", trial.DisplayName)
	assert.Equal(t, 1, trial.MaxMachines)
	assert.Equal(t, 3, trial.DurationDays)
	assert.Equal(t, float64(0), trial.PriceUSD)
	assert.Equal(t, []string{"home_feed_warmup"}, trial.Features)

	pro, ok := LookupTier("pro")
	require.True(t, ok)
	assert.Equal(t, "Pro", pro.DisplayName)
	assert.Equal(t, []string{
		"home_feed_warmup", "reels_warmup", "story_warmup",
		"keyword_search", "profile_visit", "dm_outreach",
		"voice_notes",
	}, pro.Features)

	agency, ok := LookupTier("agency")
	require.True(t, ok)
	assert.Equal(t, "Agency", agency.DisplayName)
	assert.Equal(t, 10, agency.MaxMachines)
	assert.Equal(t, 999, agency.MaxProfiles)
	assert.Equal(t, []string{
		"home_feed_warmup", "reels_warmup", "story_warmup",
		"keyword_search", "profile_visit", "dm_outreach",
		"voice_notes", "unlimited_profiles",
	}, agency.Features)

	_, ok = LookupTier("enterprise")
	assert.False(t, ok)
}

func TestLicense_StoredSchemaFieldNames(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lic := &License{
		Key:           "IGTOOL-AAAA-BBBB-CCCC-DDDD",
		Tier:          "pro",
		Revoked:       true,
		RevokedAt:     now.Unix(),
		LastValidated: now.Unix(),
		Note:          "beta customer",
	}

	raw, err := json.Marshal(lic)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "revoked_at")
	assert.Contains(t, doc, "last_validated")
	assert.Contains(t, doc, "notes")
	assert.NotContains(t, doc, "note")
}

func TestHumanTime(t *testing.T) {
	assert.Equal(t, "2026-03-01 12:30:45", HumanTime(time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC).Unix()))
}
