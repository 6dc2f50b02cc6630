package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/resumeup/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func ts(t time.Time) *time.Time { return &t }

// memUserStore is an in-memory UserStore honoring the same conditional-write
// semantics as the real repository. forcedConflicts simulates a concurrent
// writer bumping the version between read and write; beforeClaim runs once
// just before the next invite claim attempt, to interleave a competing write.
type memUserStore struct {
	mu              sync.Mutex
	users           map[string]*domain.User
	patchesApplied  int
	forcedConflicts int
	beforeClaim     func()
}

func newMemUserStore(users ...*domain.User) *memUserStore {
	s := &memUserStore{users: make(map[string]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUserStore) clone(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Membership.ExpireAt != nil {
		e := *u.Membership.ExpireAt
		c.Membership.ExpireAt = &e
	}
	return &c
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clone(s.users[id]), nil
}

func (s *memUserStore) FindByIdentity(_ context.Context, identity string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Identity == identity || (u.Alias != "" && u.Alias == identity) {
			return s.clone(u), nil
		}
	}
	return nil, nil
}

func (s *memUserStore) FindByInviteCode(_ context.Context, code string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.InviteCode == code {
			return s.clone(u), nil
		}
	}
	return nil, nil
}

func (s *memUserStore) ApplyMembershipPatch(_ context.Context, userID string, version int64, patch domain.MembershipPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	if s.forcedConflicts > 0 {
		s.forcedConflicts--
		u.Version++ // somebody else got there first
		return false, nil
	}
	if u.Version != version {
		return false, nil
	}
	if patch.Level != nil {
		u.Membership.Level = *patch.Level
	}
	if patch.Type != nil {
		u.Membership.Type = *patch.Type
	}
	if patch.Name != nil {
		u.Membership.Name = *patch.Name
	}
	if patch.ExpireAt != nil {
		e := *patch.ExpireAt
		u.Membership.ExpireAt = &e
	}
	u.Membership.PtsLimit += patch.PointsToAdd
	u.Version++
	s.patchesApplied++
	return true, nil
}

func (s *memUserStore) ClaimInviteReward(_ context.Context, userID string, version int64, invitedBy string, patch domain.MembershipPatch) (bool, error) {
	if hook := s.beforeClaim; hook != nil {
		s.beforeClaim = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	if u.HasUsedInviteCode || u.Version != version {
		return false, nil
	}
	u.HasUsedInviteCode = true
	u.InvitedBy = &invitedBy
	u.Membership.Level = *patch.Level
	e := *patch.ExpireAt
	u.Membership.ExpireAt = &e
	u.Membership.PtsLimit += patch.PointsToAdd
	u.Version++
	return true, nil
}

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrderStore(orders ...*domain.Order) *memOrderStore {
	s := &memOrderStore{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memOrderStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (s *memOrderStore) ClaimPaid(_ context.Context, id string, paidAt time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusPending {
		return nil, nil
	}
	o.Status = domain.OrderStatusPaid
	o.PaidAt = &paidAt
	c := *o
	return &c, nil
}

type memSchemeStore struct {
	schemes map[int]domain.Scheme
}

func (s *memSchemeStore) FindBySchemeID(_ context.Context, id int) (*domain.Scheme, error) {
	if sc, ok := s.schemes[id]; ok {
		return &sc, nil
	}
	return nil, nil
}

func testUser(id string, level int, expireAt *time.Time) *domain.User {
	return &domain.User{
		ID:         id,
		Identity:   "identity-" + id,
		InviteCode: "CODE-" + id,
		Membership: domain.Membership{Level: level, ExpireAt: expireAt},
	}
}

func pendingOrder(id, userID string, schemeID int) *domain.Order {
	uid := userID
	return &domain.Order{
		ID:        id,
		UserID:    &uid,
		Identity:  "identity-" + userID,
		SchemeID:  schemeID,
		OrderType: domain.SchemeTypeStandard,
		Amount:    100,
		Status:    domain.OrderStatusPending,
		CreatedAt: now.Add(-time.Hour),
	}
}

var standardScheme = domain.Scheme{
	SchemeID: 3, Level: 3, Type: domain.SchemeTypeStandard, Name: "Standard",
	DurationDays: 30, Points: 100, Price: 100,
}

func newService(users *memUserStore, orders *memOrderStore, schemes map[int]domain.Scheme) *MembershipService {
	return NewMembershipService(users, orders, &memSchemeStore{schemes: schemes})
}

func TestActivateOrderNewUser(t *testing.T) {
	users := newMemUserStore(testUser("u1", 0, nil))
	orders := newMemOrderStore(pendingOrder("o1", "u1", 3))
	svc := newService(users, orders, map[int]domain.Scheme{3: standardScheme})

	got, err := svc.ActivateOrder(context.Background(), "o1", now)
	require.NoError(t, err)

	assert.Equal(t, 3, got.Membership.Level)
	assert.Equal(t, domain.SchemeTypeStandard, got.Membership.Type)
	require.NotNil(t, got.Membership.ExpireAt)
	assert.Equal(t, now.Add(days(30)), *got.Membership.ExpireAt)
	assert.Equal(t, int64(100), got.Membership.PtsLimit)

	stored, _ := orders.FindByID(context.Background(), "o1")
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
}

func TestActivateOrderIdempotentRedelivery(t *testing.T) {
	users := newMemUserStore(testUser("u1", 0, nil))
	orders := newMemOrderStore(pendingOrder("o1", "u1", 3))
	svc := newService(users, orders, map[int]domain.Scheme{3: standardScheme})

	first, err := svc.ActivateOrder(context.Background(), "o1", now)
	require.NoError(t, err)

	// A redelivered callback must return the same state and write nothing.
	second, err := svc.ActivateOrder(context.Background(), "o1", now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.Membership, second.Membership)
	assert.Equal(t, int64(100), second.Membership.PtsLimit)
	assert.Equal(t, 1, users.patchesApplied)
}

func TestActivateOrderStacksTwoOrdersForSameUser(t *testing.T) {
	// Two same-level orders for one user: the second must stack onto the
	// first one's expiry, never overwrite it.
	users := newMemUserStore(testUser("u1", 3, ts(now.Add(days(10)))))
	orders := newMemOrderStore(pendingOrder("oa", "u1", 3), pendingOrder("ob", "u1", 3))
	svc := newService(users, orders, map[int]domain.Scheme{3: standardScheme})

	_, err := svc.ActivateOrder(context.Background(), "oa", now)
	require.NoError(t, err)
	got, err := svc.ActivateOrder(context.Background(), "ob", now)
	require.NoError(t, err)

	// 10 remaining + 30 + 30.
	assert.Equal(t, now.Add(days(70)), *got.Membership.ExpireAt)
	assert.Equal(t, int64(200), got.Membership.PtsLimit)
}

func TestActivateOrderRetriesOnVersionConflict(t *testing.T) {
	users := newMemUserStore(testUser("u1", 0, nil))
	users.forcedConflicts = 2
	orders := newMemOrderStore(pendingOrder("o1", "u1", 3))
	svc := newService(users, orders, map[int]domain.Scheme{3: standardScheme})

	got, err := svc.ActivateOrder(context.Background(), "o1", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(days(30)), *got.Membership.ExpireAt)
	assert.Equal(t, 1, users.patchesApplied)
}

func TestActivateOrderGivesUpAfterRepeatedConflicts(t *testing.T) {
	users := newMemUserStore(testUser("u1", 0, nil))
	users.forcedConflicts = membershipCASRetries + 1
	orders := newMemOrderStore(pendingOrder("o1", "u1", 3))
	svc := newService(users, orders, map[int]domain.Scheme{3: standardScheme})

	_, err := svc.ActivateOrder(context.Background(), "o1", now)
	require.Error(t, err)
	assert.Equal(t, 0, users.patchesApplied)
}

func TestActivateOrderInvalidStates(t *testing.T) {
	t.Run("unknown order", func(t *testing.T) {
		svc := newService(newMemUserStore(), newMemOrderStore(), nil)

		_, err := svc.ActivateOrder(context.Background(), "missing", now)
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
	})

	t.Run("cancelled order is not activatable", func(t *testing.T) {
		o := pendingOrder("o1", "u1", 3)
		o.Status = domain.OrderStatusCancelled
		svc := newService(newMemUserStore(testUser("u1", 0, nil)), newMemOrderStore(o), map[int]domain.Scheme{3: standardScheme})

		_, err := svc.ActivateOrder(context.Background(), "o1", now)
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
	})
}

func TestActivateOrderCatalogInconsistencyIsFatal(t *testing.T) {
	users := newMemUserStore(testUser("u1", 0, nil))
	orders := newMemOrderStore(pendingOrder("o1", "u1", 99))
	svc := newService(users, orders, map[int]domain.Scheme{3: standardScheme})

	_, err := svc.ActivateOrder(context.Background(), "o1", now)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCatalogInconsistency))
	// The order stays claimed: the money is real, reconciliation is manual.
	stored, _ := orders.FindByID(context.Background(), "o1")
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)
	assert.Equal(t, 0, users.patchesApplied)
}

func TestActivateOrderResolvesOwnerByAlias(t *testing.T) {
	u := testUser("u1", 0, nil)
	u.Alias = "legacy-openid"
	users := newMemUserStore(u)

	o := pendingOrder("o1", "u1", 3)
	o.UserID = nil
	o.Identity = "legacy-openid"
	svc := newService(users, newMemOrderStore(o), map[int]domain.Scheme{3: standardScheme})

	got, err := svc.ActivateOrder(context.Background(), "o1", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, 3, got.Membership.Level)
}

func TestActivateOrderMissingUserIsFatal(t *testing.T) {
	orders := newMemOrderStore(pendingOrder("o1", "ghost", 3))
	svc := newService(newMemUserStore(), orders, map[int]domain.Scheme{3: standardScheme})

	_, err := svc.ActivateOrder(context.Background(), "o1", now)

	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.Code)
}

func TestRedeemInviteCode(t *testing.T) {
	setup := func() (*memUserStore, *MembershipService) {
		invitee := testUser("invitee", 0, nil)
		inviter := testUser("inviter", 3, ts(now.Add(days(10))))
		users := newMemUserStore(invitee, inviter)
		return users, newService(users, newMemOrderStore(), nil)
	}

	t.Run("successful redemption rewards both parties", func(t *testing.T) {
		users, svc := setup()

		err := svc.RedeemInviteCode(context.Background(), "invitee", "CODE-inviter", now)
		require.NoError(t, err)

		invitee, _ := users.FindByID(context.Background(), "invitee")
		assert.True(t, invitee.HasUsedInviteCode)
		require.NotNil(t, invitee.InvitedBy)
		assert.Equal(t, "inviter", *invitee.InvitedBy)
		assert.Equal(t, 1, invitee.Membership.Level)
		assert.Equal(t, now.Add(days(3)), *invitee.Membership.ExpireAt)
		assert.Equal(t, int64(5), invitee.Membership.PtsLimit)

		inviter, _ := users.FindByID(context.Background(), "inviter")
		assert.Equal(t, 3, inviter.Membership.Level)
		assert.Equal(t, now.Add(days(13)), *inviter.Membership.ExpireAt)
		assert.Equal(t, int64(5), inviter.Membership.PtsLimit)
		assert.False(t, inviter.HasUsedInviteCode)
	})

	t.Run("second redemption by the same invitee is refused without mutation", func(t *testing.T) {
		users, svc := setup()
		require.NoError(t, svc.RedeemInviteCode(context.Background(), "invitee", "CODE-inviter", now))

		err := svc.RedeemInviteCode(context.Background(), "invitee", "CODE-inviter", now)
		assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

		inviter, _ := users.FindByID(context.Background(), "inviter")
		assert.Equal(t, int64(5), inviter.Membership.PtsLimit) // still one reward
	})

	t.Run("losing the claim to a concurrent redemption maps to AlreadyClaimed and skips the inviter", func(t *testing.T) {
		users, svc := setup()
		users.beforeClaim = func() {
			// Another redemption wins between our read and our write.
			users.mu.Lock()
			users.users["invitee"].HasUsedInviteCode = true
			users.users["invitee"].Version++
			users.mu.Unlock()
		}

		err := svc.RedeemInviteCode(context.Background(), "invitee", "CODE-inviter", now)
		assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

		inviter, _ := users.FindByID(context.Background(), "inviter")
		assert.Equal(t, int64(0), inviter.Membership.PtsLimit)
	})

	t.Run("invalid code mutates nobody", func(t *testing.T) {
		users, svc := setup()

		err := svc.RedeemInviteCode(context.Background(), "invitee", "NO-SUCH-CODE", now)
		assert.ErrorIs(t, err, domain.ErrInvalidInviteCode)

		invitee, _ := users.FindByID(context.Background(), "invitee")
		assert.False(t, invitee.HasUsedInviteCode)
		assert.Equal(t, int64(0), invitee.Membership.PtsLimit)
	})

	t.Run("code match is case-sensitive", func(t *testing.T) {
		_, svc := setup()

		err := svc.RedeemInviteCode(context.Background(), "invitee", "code-inviter", now)
		assert.ErrorIs(t, err, domain.ErrInvalidInviteCode)
	})

	t.Run("self invite is refused", func(t *testing.T) {
		users, svc := setup()

		err := svc.RedeemInviteCode(context.Background(), "invitee", "CODE-invitee", now)
		assert.ErrorIs(t, err, domain.ErrSelfInvite)

		invitee, _ := users.FindByID(context.Background(), "invitee")
		assert.False(t, invitee.HasUsedInviteCode)
	})

	t.Run("missing parameters", func(t *testing.T) {
		_, svc := setup()

		assert.ErrorIs(t, svc.RedeemInviteCode(context.Background(), "", "CODE-inviter", now), domain.ErrParamMissing)
		assert.ErrorIs(t, svc.RedeemInviteCode(context.Background(), "invitee", "", now), domain.ErrParamMissing)
	})

	t.Run("unknown invitee", func(t *testing.T) {
		_, svc := setup()

		err := svc.RedeemInviteCode(context.Background(), "ghost", "CODE-inviter", now)
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, 404, appErr.Code)
	})
}

func TestRedeemInviteCodePreservesConcurrentActivation(t *testing.T) {
	// A payment lands between the redemption's read of the invitee and its
	// claim write. The claim must lose the version check, re-read, and stack
	// the invite on top of the freshly paid entitlement instead of
	// overwriting it with values computed from the stale read.
	invitee := testUser("invitee", 0, nil)
	inviter := testUser("inviter", 0, nil)
	users := newMemUserStore(invitee, inviter)
	orders := newMemOrderStore(pendingOrder("o1", "invitee", 3))
	svc := newService(users, orders, map[int]domain.Scheme{3: standardScheme})

	users.beforeClaim = func() {
		_, err := svc.ActivateOrder(context.Background(), "o1", now)
		require.NoError(t, err)
	}

	require.NoError(t, svc.RedeemInviteCode(context.Background(), "invitee", "CODE-inviter", now))

	got, _ := users.FindByID(context.Background(), "invitee")
	assert.True(t, got.HasUsedInviteCode)
	assert.Equal(t, 3, got.Membership.Level)
	// 30 paid days plus the 3-day invite reward.
	require.NotNil(t, got.Membership.ExpireAt)
	assert.Equal(t, now.Add(days(33)), *got.Membership.ExpireAt)
	assert.Equal(t, int64(105), got.Membership.PtsLimit)

	// The inviter's side is untouched by the race.
	rewarded, _ := users.FindByID(context.Background(), "inviter")
	assert.Equal(t, now.Add(days(3)), *rewarded.Membership.ExpireAt)
	assert.Equal(t, int64(5), rewarded.Membership.PtsLimit)
}

func TestRedeemInviteCodeManyInviteesStackOnInviter(t *testing.T) {
	inviter := testUser("inviter", 0, nil)
	a := testUser("a", 0, nil)
	b := testUser("b", 0, nil)
	users := newMemUserStore(inviter, a, b)
	svc := newService(users, newMemOrderStore(), nil)

	require.NoError(t, svc.RedeemInviteCode(context.Background(), "a", "CODE-inviter", now))
	require.NoError(t, svc.RedeemInviteCode(context.Background(), "b", "CODE-inviter", now))

	got, _ := users.FindByID(context.Background(), "inviter")
	// Two redemptions stack: 3 + 3 days, 5 + 5 points.
	assert.Equal(t, now.Add(days(6)), *got.Membership.ExpireAt)
	assert.Equal(t, int64(10), got.Membership.PtsLimit)
	assert.Equal(t, 1, got.Membership.Level)
}
