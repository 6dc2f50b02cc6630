package domain

import "time"

// Invite reward constants: both parties receive the same fixed grant.
const (
	InviteRewardDays   = 3
	InviteRewardPoints = 5
	InviteLevelFloor   = 1
)

// Membership is the entitlement sub-record embedded in a User. It is created
// empty (level 0, no expiry) at account creation and only ever mutated in
// place by order activation or invite redemption.
type Membership struct {
	Level    int        `json:"level"`
	Type     string     `json:"type,omitempty"`
	Name     string     `json:"name,omitempty"`
	ExpireAt *time.Time `json:"expireAt,omitempty"`
	PtsLimit int64      `json:"ptsLimit"` // cumulative spendable-point allowance, only ever incremented
}

// ActiveAt reports whether the membership is currently entitled. A missing
// expiry and a past expiry both mean "not entitled".
func (m Membership) ActiveAt(now time.Time) bool {
	return m.ExpireAt != nil && m.ExpireAt.After(now)
}

// MembershipPatch is the output of Transition. A nil field means "do not
// modify"; consumers must never interpret an absent value as "clear".
// PointsToAdd is always applied, as an atomic increment.
type MembershipPatch struct {
	Level       *int
	Type        *string
	Name        *string
	ExpireAt    *time.Time
	PointsToAdd int64
}

// IsZero reports whether the patch would not modify anything.
func (p MembershipPatch) IsZero() bool {
	return p.Level == nil && p.Type == nil && p.Name == nil && p.ExpireAt == nil && p.PointsToAdd == 0
}

// Transition computes the membership fields resulting from activating scheme
// s against the current membership m at instant now. Pure: no side effects,
// no clock reads.
//
// Branches:
//   - topup: tier identity untouched; duration > 0 extends from the later of
//     now and the current expiry, duration == 0 leaves the expiry untouched.
//   - same-level renewal while active: expiry stacks on the current one.
//   - everything else (new, expired, upgrade, downgrade): tier identity is
//     overwritten and the clock resets to now + duration. Remaining time on a
//     different tier is forfeited; that is a business decision, not a bug.
func Transition(m Membership, s Scheme, now time.Time) MembershipPatch {
	patch := MembershipPatch{PointsToAdd: s.Points}
	duration := time.Duration(s.DurationDays) * 24 * time.Hour
	active := m.ActiveAt(now)

	switch {
	case s.Type == SchemeTypeTopup:
		if s.DurationDays > 0 {
			base := now
			if active {
				base = *m.ExpireAt
			}
			expire := base.Add(duration)
			patch.ExpireAt = &expire
		}
		// A zero-duration topup adds points only; expiry stays untouched.
	case active && s.Level == m.Level:
		expire := m.ExpireAt.Add(duration)
		patch.ExpireAt = &expire
	default:
		level, typ, name := s.Level, s.Type, s.Name
		expire := now.Add(duration)
		patch.Level = &level
		patch.Type = &typ
		patch.Name = &name
		patch.ExpireAt = &expire
	}

	return patch
}

// InviteReward computes the patch granted to one party of an invite
// redemption: +InviteRewardDays from the later of now and the current expiry,
// level floored at InviteLevelFloor, +InviteRewardPoints.
func InviteReward(m Membership, now time.Time) MembershipPatch {
	base := now
	if m.ExpireAt != nil && m.ExpireAt.After(now) {
		base = *m.ExpireAt
	}
	expire := base.Add(InviteRewardDays * 24 * time.Hour)

	level := m.Level
	if level < InviteLevelFloor {
		level = InviteLevelFloor
	}

	return MembershipPatch{
		Level:       &level,
		ExpireAt:    &expire,
		PointsToAdd: InviteRewardPoints,
	}
}
