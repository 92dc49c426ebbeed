// Package domain defines the wire contracts of the license API: request
// payloads with validation tags, and the response shapes clients consume.
package domain

// ValidateRequest asks whether a key is usable on a given machine.
type ValidateRequest struct {
	Key  string `json:"key" validate:"required,min=8,max=64"`
	HWID string `json:"hwid" validate:"required,min=4,max=128"`
}

// ActivateRequest binds a machine to a license.
type ActivateRequest struct {
	Key         string `json:"key" validate:"required,min=8,max=64"`
	HWID        string `json:"hwid" validate:"required,min=4,max=128"`
	MachineName string `json:"machine_name,omitempty" validate:"max=128"`
}

// TrialRequest requests a one-time trial license for a machine.
type TrialRequest struct {
	HWID        string `json:"hwid" validate:"required,min=4,max=128"`
	MachineName string `json:"machine_name,omitempty" validate:"max=128"`
}

// GenerateRequest creates a license (admin). A max_machines of zero (or
// absent) means the tier default cap.
type GenerateRequest struct {
	Tier         string `json:"tier" validate:"required,oneof=trial basic pro agency"`
	DurationDays *int   `json:"duration_days,omitempty" validate:"omitempty,min=1,max=3650"`
	MaxMachines  *int   `json:"max_machines,omitempty" validate:"omitempty,min=0,max=1000"`
	Note         string `json:"notes,omitempty" validate:"max=500"`
}

// RevokeRequest disables a license (admin).
type RevokeRequest struct {
	Key string `json:"key" validate:"required"`
}

// ExtendRequest moves a license expiry forward (admin). Zero days is
// allowed and serves as a pure un-revoke.
type ExtendRequest struct {
	Key  string `json:"key" validate:"required"`
	Days int    `json:"days" validate:"min=0,max=3650"`
}

// DeleteRequest permanently removes a license (admin).
type DeleteRequest struct {
	Key string `json:"key" validate:"required"`
}

// DeactivateRequest unbinds a machine from a license (admin).
type DeactivateRequest struct {
	Key  string `json:"key" validate:"required"`
	HWID string `json:"hwid" validate:"required"`
}

// MachineInfo is one hardware binding as rendered to clients.
type MachineInfo struct {
	HWID             string `json:"hwid"`
	MachineName      string `json:"machine_name,omitempty"`
	ActivatedAt      int64  `json:"activated_at"`
	ActivatedAtHuman string `json:"activated_at_human"`
}

// ValidateResponse reports the outcome of a validation. On failure Valid
// is false and Error carries the reason.
type ValidateResponse struct {
	Valid          bool     `json:"valid"`
	Error          string   `json:"error,omitempty"`
	Status         string   `json:"status,omitempty"`
	Tier           string   `json:"tier,omitempty"`
	TierName       string   `json:"tier_name,omitempty"`
	Features       []string `json:"features,omitempty"`
	MaxProfiles    int      `json:"max_profiles,omitempty"`
	ExpiresAt      int64    `json:"expires_at,omitempty"`
	ExpiresAtHuman string   `json:"expires_at_human,omitempty"`
	DaysRemaining  int      `json:"days_remaining,omitempty"`
	MachinesUsed   int      `json:"machines_used,omitempty"`
	MaxMachines    int      `json:"max_machines,omitempty"`
}

// ActivateResponse reports the outcome of an activation. Success carries
// the entitlement summary so clients need no follow-up validate call.
type ActivateResponse struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
	AlreadyBound bool     `json:"already_bound,omitempty"`
	Tier         string   `json:"tier,omitempty"`
	TierName     string   `json:"tier_name,omitempty"`
	Features     []string `json:"features,omitempty"`
	MaxProfiles  int      `json:"max_profiles,omitempty"`
	ExpiresAt    int64    `json:"expires_at,omitempty"`
	MachinesUsed int      `json:"machines_used,omitempty"`
	MaxMachines  int      `json:"max_machines,omitempty"`
}

// TrialResponse reports the outcome of a trial request, carrying the
// issued key and entitlement summary on success.
type TrialResponse struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error,omitempty"`
	Key            string   `json:"key,omitempty"`
	Tier           string   `json:"tier,omitempty"`
	TierName       string   `json:"tier_name,omitempty"`
	Features       []string `json:"features,omitempty"`
	MaxProfiles    int      `json:"max_profiles,omitempty"`
	ExpiresAt      int64    `json:"expires_at,omitempty"`
	ExpiresAtHuman string   `json:"expires_at_human,omitempty"`
	DaysRemaining  int      `json:"days_remaining,omitempty"`
}

// LicenseInfo is the full admin-facing rendering of a license record.
type LicenseInfo struct {
	Key            string        `json:"key"`
	Tier           string        `json:"tier"`
	TierName       string        `json:"tier_name"`
	Status         string        `json:"status"`
	CreatedAt      int64         `json:"created_at"`
	CreatedAtHuman string        `json:"created_at_human"`
	ExpiresAt      int64         `json:"expires_at"`
	ExpiresAtHuman string        `json:"expires_at_human"`
	DaysRemaining  int           `json:"days_remaining"`
	Revoked        bool          `json:"revoked"`
	RevokedAt      int64         `json:"revoked_at,omitempty"`
	Machines       []MachineInfo `json:"machines"`
	MachinesUsed   int           `json:"machines_used"`
	MaxMachines    int           `json:"max_machines"`
	LastValidated  int64         `json:"last_validated,omitempty"`
	Note           string        `json:"notes,omitempty"`
}

// GenerateResponse returns the freshly created license.
type GenerateResponse struct {
	Success bool        `json:"success"`
	License LicenseInfo `json:"license"`
}

// ListResponse returns every license, newest first.
type ListResponse struct {
	Licenses []LicenseInfo `json:"licenses"`
	Count    int           `json:"count"`
}

// StatsResponse aggregates the license population.
type StatsResponse struct {
	Total          int            `json:"total"`
	Active         int            `json:"active"`
	Expired        int            `json:"expired"`
	Revoked        int            `json:"revoked"`
	ByTier         map[string]int `json:"by_tier"`
	MachinesBound  int            `json:"machines_bound"`
	MonthlyRevenue float64        `json:"monthly_revenue_usd"`
}

// OperationResponse is the generic admin acknowledgement.
type OperationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports process and dependency health.
type HealthResponse struct {
	Status  string `json:"status"`
	Store   string `json:"store,omitempty"`
	Version string `json:"version,omitempty"`
}
