package domain

// Scheme type families. Topup schemes add points and/or time without
// changing tier level or type.
const (
	SchemeTypeTrial    = "trial"
	SchemeTypeSprint   = "sprint"
	SchemeTypeStandard = "standard"
	SchemeTypePremium  = "premium"
	SchemeTypeTopup    = "topup"
)

// DefaultDurationDays is the historical default applied to catalog rows that
// carry no duration at all. Preserved for compatibility with legacy rows.
const DefaultDurationDays = 30

// Scheme is an immutable membership plan from the catalog, with all legacy
// field fallbacks already resolved. Code past the repository boundary never
// re-derives defaults.
type Scheme struct {
	SchemeID     int    `json:"schemeId"`
	Level        int    `json:"level"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	DurationDays int    `json:"durationDays"`
	Points       int64  `json:"points"`
	Price        int64  `json:"price"` // minor currency units
}

// SchemeUpsertRequest creates or replaces a catalog row. Days is a pointer
// so an omitted duration falls back to the historical default while an
// explicit zero (points-only topup) survives the round trip.
type SchemeUpsertRequest struct {
	SchemeID int    `json:"schemeId" validate:"required,gt=0"`
	Level    int    `json:"level" validate:"gte=0"`
	Type     string `json:"type" validate:"required,oneof=trial sprint standard premium topup"`
	Name     string `json:"name" validate:"required"`
	Days     *int   `json:"days" validate:"omitempty,gte=0"`
	Points   int64  `json:"points" validate:"gte=0"`
	Price    int64  `json:"price" validate:"gte=0"`
}

// ResolveDurationDays normalizes the catalog's duration fields: the current
// `days` column wins, the legacy `duration_days` column is the fallback, and
// a row with neither gets DefaultDurationDays. An explicit zero is a real
// value (points-only topup) and is kept, never defaulted.
func ResolveDurationDays(days, legacyDays *int) int {
	if days != nil {
		return *days
	}
	if legacyDays != nil {
		return *legacyDays
	}
	return DefaultDurationDays
}
