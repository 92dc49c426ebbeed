package license

// Tier describes the entitlements attached to a license tier. Name is the
// catalog identifier; DisplayName is the human-facing tier_name rendered
// in responses.
type Tier struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	MaxMachines  int      `json:"max_machines"`
	Features     []string `json:"features"`
	MaxProfiles  int      `json:"max_profiles"`
	DurationDays int      `json:"duration_days"`
	PriceUSD     float64  `json:"price_usd"`
}

// DefaultTier is applied when a stored record carries a tier name that is
// no longer in the catalog.
const DefaultTier = "basic"

// tiers is the built-in catalog. Order of Features is stable and flows
// through to responses unchanged.
var tiers = map[string]Tier{
	"trial": {
		Name:         "trial",
		DisplayName:  "Trial",
		MaxMachines:  1,
		Features:     []string{"home_feed_warmup"},
		MaxProfiles:  1,
		DurationDays: 3,
		PriceUSD:     0,
	},
	"basic": {
		Name:         "basic",
		DisplayName:  "Basic",
		MaxMachines:  1,
		Features:     []string{"home_feed_warmup", "dm_outreach"},
		MaxProfiles:  1,
		DurationDays: 30,
		PriceUSD:     29,
	},
	"pro": {
		Name:         "pro",
		DisplayName:  "Pro",
		MaxMachines:  3,
		Features: []string{
			"home_feed_warmup", "reels_warmup", "story_warmup",
			"keyword_search", "profile_visit", "dm_outreach",
			"voice_notes",
		},
		MaxProfiles:  3,
		DurationDays: 30,
		PriceUSD:     49,
	},
	"agency": {
		Name:         "agency",
		DisplayName:  "Agency",
		MaxMachines:  10,
		Features: []string{
			"home_feed_warmup", "reels_warmup", "story_warmup",
			"keyword_search", "profile_visit", "dm_outreach",
			"voice_notes", "unlimited_profiles",
		},
		MaxProfiles:  999,
		DurationDays: 30,
		PriceUSD:     99,
	},
}

// LookupTier returns the tier for name. ok is false when name is not in
// the catalog.
func LookupTier(name string) (Tier, bool) {
	t, ok := tiers[name]
	return t, ok
}

// TierOrDefault returns the tier for name, falling back to the basic tier
// for unknown names so stale records stay serviceable.
func TierOrDefault(name string) Tier {
	if t, ok := tiers[name]; ok {
		return t
	}
	return tiers[DefaultTier]
}

// TierNames lists the catalog tier names in a fixed display order.
func TierNames() []string {
	return []string{"trial", "basic", "pro", "agency"}
}
