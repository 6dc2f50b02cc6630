package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resumeup/backend/internal/domain"
)

const userColumns = `id, email, password, role, identity, alias, invite_code,
	has_used_invite_code, invited_by,
	membership_level, membership_type, membership_name, membership_expire_at,
	pts_limit, version, created_at, updated_at`

// UserRepository handles database operations for users and their embedded
// membership record. Every membership mutation goes through either a
// version-checked conditional write (ApplyMembershipPatch) or a flag-checked
// one (ClaimInviteReward); there is no unconditional membership write.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.Role, &u.Identity, &u.Alias, &u.InviteCode,
		&u.HasUsedInviteCode, &u.InvitedBy,
		&u.Membership.Level, &u.Membership.Type, &u.Membership.Name, &u.Membership.ExpireAt,
		&u.Membership.PtsLimit, &u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// Create inserts a new user. The membership sub-record starts empty
// (level 0, no expiry) and is only ever mutated by activations and
// redemptions from then on.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, password, role, identity, alias, invite_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.Password, u.Role, u.Identity, u.Alias, u.InviteCode,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID returns a user by ID, or nil if absent.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByEmail returns a user by email address, or nil if absent.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// FindByIdentity resolves a user by their external identity, matching either
// the primary identity column or the legacy alias.
func (r *UserRepository) FindByIdentity(ctx context.Context, identity string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE identity = $1 OR alias = $1`
	return scanUser(r.db.QueryRow(ctx, query, identity))
}

// FindByInviteCode looks up the owner of a shareable code. The match is
// exact and case-sensitive.
func (r *UserRepository) FindByInviteCode(ctx context.Context, code string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE invite_code = $1`
	return scanUser(r.db.QueryRow(ctx, query, code))
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ApplyMembershipPatch applies a membership patch with a version-checked
// conditional write. Nil patch fields are left out of the SET clause, so an
// omitted field is a no-op, never a clear. Points land as an in-database
// increment. Returns false when the version no longer matches, in which case
// the caller re-reads and retries.
func (r *UserRepository) ApplyMembershipPatch(ctx context.Context, userID string, version int64, patch domain.MembershipPatch) (bool, error) {
	sets := []string{"pts_limit = pts_limit + $3", "version = version + 1", "updated_at = NOW()"}
	args := []interface{}{userID, version, patch.PointsToAdd}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Level != nil {
		add("membership_level", *patch.Level)
	}
	if patch.Type != nil {
		add("membership_type", *patch.Type)
	}
	if patch.Name != nil {
		add("membership_name", *patch.Name)
	}
	if patch.ExpireAt != nil {
		add("membership_expire_at", *patch.ExpireAt)
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $1 AND version = $2`,
		strings.Join(sets, ", "),
	)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to apply membership patch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimInviteReward applies the invitee side of a redemption, conditioned on
// the one-time flag still being unset and the version still matching at write
// time. The flag makes the claim single-use; the version check keeps the
// level/expiry overwrite from clobbering an entitlement written between the
// caller's read and this write. Losers get false, not an error; the caller
// re-reads to tell the two conditions apart.
func (r *UserRepository) ClaimInviteReward(ctx context.Context, userID string, version int64, invitedBy string, patch domain.MembershipPatch) (bool, error) {
	query := `
		UPDATE users
		SET has_used_invite_code = TRUE,
		    invited_by = $3,
		    membership_level = $4,
		    membership_expire_at = $5,
		    pts_limit = pts_limit + $6,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND has_used_invite_code = FALSE AND version = $2
	`
	tag, err := r.db.Exec(ctx, query, userID, version, invitedBy, *patch.Level, *patch.ExpireAt, patch.PointsToAdd)
	if err != nil {
		return false, fmt.Errorf("failed to claim invite reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
