package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/resumeup/backend/internal/domain"
)

// membershipCASRetries bounds the optimistic-concurrency retry loop on user
// membership writes. Contention on a single user is rare; three attempts is
// already generous.
const membershipCASRetries = 3

// UserStore is the slice of the user repository the orchestrators need.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByIdentity(ctx context.Context, identity string) (*domain.User, error)
	FindByInviteCode(ctx context.Context, code string) (*domain.User, error)
	ApplyMembershipPatch(ctx context.Context, userID string, version int64, patch domain.MembershipPatch) (bool, error)
	ClaimInviteReward(ctx context.Context, userID string, version int64, invitedBy string, patch domain.MembershipPatch) (bool, error)
}

// OrderStore is the slice of the order repository the orchestrators need.
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	ClaimPaid(ctx context.Context, id string, paidAt time.Time) (*domain.Order, error)
}

// SchemeStore is the read-only catalog access the orchestrators need.
type SchemeStore interface {
	FindBySchemeID(ctx context.Context, schemeID int) (*domain.Scheme, error)
}

// MembershipService owns the two mutation paths into a user's entitlement:
// order activation and invite-code redemption. Both paths synchronize on
// single-row conditional writes only; the claim decides the winner and the
// version-checked patch loop keeps concurrent expiry writes from losing
// updates.
type MembershipService struct {
	users   UserStore
	orders  OrderStore
	schemes SchemeStore
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(users UserStore, orders OrderStore, schemes SchemeStore) *MembershipService {
	return &MembershipService{users: users, orders: orders, schemes: schemes}
}

// ActivateOrder applies a verified payment-success event for orderID. Safe to
// invoke any number of times for the same order: the first call past the
// claim activates, every later call resolves the owner and returns their
// current entitlement without writing anything.
func (s *MembershipService) ActivateOrder(ctx context.Context, orderID string, now time.Time) (*domain.User, error) {
	order, err := s.orders.ClaimPaid(ctx, orderID, now)
	if err != nil {
		return nil, domain.ErrInternal("failed to claim order", err)
	}

	if order == nil {
		// Claim lost. Either a redelivered event for an already-paid order
		// (idempotent no-op) or a genuinely invalid state.
		existing, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, domain.ErrInternal("failed to re-read order", err)
		}
		if existing == nil || existing.Status != domain.OrderStatusPaid {
			return nil, domain.ErrInvalidOrderState
		}
		log.Printf("[Membership] order %s already paid, returning idempotent result", orderID)
		user, err := s.resolveOwner(ctx, existing)
		if err != nil {
			return nil, err
		}
		return user, nil
	}

	// Claim won: from here the activation must run to completion or fail
	// loudly. There is no rollback for a half-applied reward.
	scheme, err := s.schemes.FindBySchemeID(ctx, order.SchemeID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load scheme", err)
	}
	if scheme == nil {
		log.Printf("[Membership] FATAL: order %s paid but scheme %d is missing from the catalog, manual reconciliation required", orderID, order.SchemeID)
		return nil, fmt.Errorf("order %s, scheme %d: %w", orderID, order.SchemeID, domain.ErrCatalogInconsistency)
	}

	user, err := s.resolveOwner(ctx, order)
	if err != nil {
		return nil, err
	}

	log.Printf("[Membership] activating order %s for user %s: level %d -> %d (%s)",
		orderID, user.ID, user.Membership.Level, scheme.Level, scheme.Type)

	if err := s.applyPatchWithRetry(ctx, user, func(m domain.Membership) domain.MembershipPatch {
		return domain.Transition(m, *scheme, now)
	}); err != nil {
		return nil, err
	}

	return s.users.FindByID(ctx, user.ID)
}

// resolveOwner finds the user an order belongs to: primary user reference
// first, identity alias second. A paid order without a resolvable owner is a
// fatal data fault, not a retryable miss.
func (s *MembershipService) resolveOwner(ctx context.Context, order *domain.Order) (*domain.User, error) {
	var user *domain.User
	var err error
	if order.UserID != nil && *order.UserID != "" {
		user, err = s.users.FindByID(ctx, *order.UserID)
	} else {
		user, err = s.users.FindByIdentity(ctx, order.Identity)
	}
	if err != nil {
		return nil, domain.ErrInternal("failed to resolve order owner", err)
	}
	if user == nil {
		log.Printf("[Membership] FATAL: no user for order %s (userId=%v identity=%q)", order.ID, order.UserID, order.Identity)
		return nil, domain.ErrNotFound("user not found for paid order")
	}
	return user, nil
}

// applyPatchWithRetry runs the version-checked CAS loop: recompute the patch
// against the freshest membership state, attempt the conditional write, and
// re-read on conflict. Recomputing inside the loop is what makes concurrent
// expiry extensions stack instead of overwriting each other.
func (s *MembershipService) applyPatchWithRetry(ctx context.Context, user *domain.User, compute func(domain.Membership) domain.MembershipPatch) error {
	for attempt := 0; attempt < membershipCASRetries; attempt++ {
		patch := compute(user.Membership)
		ok, err := s.users.ApplyMembershipPatch(ctx, user.ID, user.Version, patch)
		if err != nil {
			return domain.ErrInternal("failed to update membership", err)
		}
		if ok {
			return nil
		}

		log.Printf("[Membership] version conflict on user %s (attempt %d), re-reading", user.ID, attempt+1)
		user, err = s.users.FindByID(ctx, user.ID)
		if err != nil {
			return domain.ErrInternal("failed to re-read user after conflict", err)
		}
		if user == nil {
			return domain.ErrNotFound("user disappeared during membership update")
		}
	}
	return domain.ErrInternal("membership update lost the version race repeatedly", nil)
}

// RedeemInviteCode applies the one-time peer-referral reward: the invitee
// claims their single-use eligibility with a conditional write, then the
// inviter receives the symmetric reward. Expected outcomes (already claimed,
// invalid code, self invite) come back as sentinel errors for the handler to
// fold into a success/message response.
func (s *MembershipService) RedeemInviteCode(ctx context.Context, inviteeID, targetCode string, now time.Time) error {
	if inviteeID == "" || targetCode == "" {
		return domain.ErrParamMissing
	}

	invitee, err := s.users.FindByID(ctx, inviteeID)
	if err != nil {
		return domain.ErrInternal("failed to load invitee", err)
	}
	if invitee == nil {
		return domain.ErrNotFound("user not found")
	}

	// Fast path only; the conditional write below is the authority.
	if invitee.HasUsedInviteCode {
		return domain.ErrAlreadyClaimed
	}

	inviter, err := s.users.FindByInviteCode(ctx, targetCode)
	if err != nil {
		return domain.ErrInternal("failed to look up invite code", err)
	}
	if inviter == nil {
		return domain.ErrInvalidInviteCode
	}
	if inviter.ID == invitee.ID {
		return domain.ErrSelfInvite
	}

	// The claim is conditioned on both the one-time flag and the version, so
	// an entitlement written between our read and the claim (a concurrent
	// order activation, say) cannot be clobbered. A lost claim is ambiguous:
	// re-read to tell "flag now set" from "version moved", and in the latter
	// case recompute the patch against the fresh state and retry.
	claimed := false
	for attempt := 0; attempt < membershipCASRetries; attempt++ {
		patch := domain.InviteReward(invitee.Membership, now)
		ok, err := s.users.ClaimInviteReward(ctx, invitee.ID, invitee.Version, inviter.ID, patch)
		if err != nil {
			return domain.ErrInternal("failed to apply invitee reward", err)
		}
		if ok {
			claimed = true
			break
		}

		invitee, err = s.users.FindByID(ctx, invitee.ID)
		if err != nil {
			return domain.ErrInternal("failed to re-read invitee after conflict", err)
		}
		if invitee == nil {
			return domain.ErrNotFound("user disappeared during redemption")
		}
		if invitee.HasUsedInviteCode {
			// A concurrent redemption won the claim.
			return domain.ErrAlreadyClaimed
		}
		log.Printf("[Membership] version conflict on invitee %s claim (attempt %d), retrying", invitee.ID, attempt+1)
	}
	if !claimed {
		return domain.ErrInternal("invite claim lost the version race repeatedly", nil)
	}

	log.Printf("[Membership] invite code %s redeemed: invitee %s rewarded, rewarding inviter %s", targetCode, invitee.ID, inviter.ID)

	// The inviter side has no single-use constraint (many invitees may reward
	// the same inviter) but the expiry extension still goes through the CAS
	// loop so concurrent redemptions stack instead of clobbering.
	if err := s.applyPatchWithRetry(ctx, inviter, func(m domain.Membership) domain.MembershipPatch {
		return domain.InviteReward(m, now)
	}); err != nil {
		// The invitee's claim is already committed; surface loudly.
		log.Printf("[Membership] FATAL: invitee %s rewarded but inviter %s update failed: %v", invitee.ID, inviter.ID, err)
		return err
	}

	return nil
}

// GetEntitlement returns a user's current membership state.
func (s *MembershipService) GetEntitlement(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return user, nil
}
