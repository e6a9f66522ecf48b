package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"splitshare-service/internal/ledger"
	"splitshare-service/internal/models"
	"splitshare-service/internal/observability"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrDuplicateGroup  = errors.New("group name already taken")
	ErrDuplicateMember = errors.New("user is already a member of this group")
	ErrMemberNotFound  = errors.New("membership not found")
)

// CreateGroupParams carries the fields of a new group.
type CreateGroupParams struct {
	Name        string
	Description string
	Currency    string
	GroupTypes  string
	Amount      float64
	MemberIDs   []int
}

// GroupUpdate holds the optional scalar fields of a group update.
// A non-nil Amount triggers a share recomputation in the same transaction.
type GroupUpdate struct {
	Name        *string
	Description *string
	Currency    *string
	GroupTypes  *string
	Amount      *float64
}

// GroupRepository abstracts group and membership persistence. Every
// membership mutation recomputes all member shares atomically, so the sum
// of shares always equals the group amount.
type GroupRepository interface {
	CreateGroup(ctx context.Context, adminID int, params CreateGroupParams) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error)
	ListMembers(ctx context.Context, groupID int) ([]models.Member, error)
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
	AddMember(ctx context.Context, groupID, userID int) (models.Membership, error)
	RemoveMember(ctx context.Context, groupID, userID int) (models.Membership, error)
	UpdateGroup(ctx context.Context, groupID int, update GroupUpdate) (models.Group, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, description, admin_id, currency, group_types, amount, created_at`

// CreateGroup creates the group, the admin membership, and any initial
// memberships in one transaction. Shares are divided once among the final
// member count instead of redividing after every single insert.
func (r *GroupRepo) CreateGroup(ctx context.Context, adminID int, params CreateGroupParams) (models.Group, error) {
	ctx, span := otel.Tracer("splitshare/ledger").Start(ctx, "group.create")
	defer span.End()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group,
		`INSERT INTO groups (name, description, admin_id, currency, group_types, amount)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+groupColumns,
		params.Name, params.Description, adminID, params.Currency, params.GroupTypes, params.Amount)
	if isUniqueViolation(err) {
		err = ErrDuplicateGroup
		return models.Group{}, err
	}
	if err != nil {
		return models.Group{}, err
	}

	// admin first so it absorbs any remainder cents
	memberIDs := []int{adminID}
	for _, id := range params.MemberIDs {
		if id == adminID {
			continue
		}
		memberIDs = append(memberIDs, id)
	}

	for _, id := range memberIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`,
			group.ID, id); err != nil {
			if isUniqueViolation(err) {
				err = ErrDuplicateMember
			}
			return models.Group{}, err
		}
	}

	if err = recomputeShares(ctx, tx, group.ID, group.Amount); err != nil {
		return models.Group{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}

	span.SetAttributes(attribute.Int("group.id", group.ID), attribute.Int("group.members", len(memberIDs)))
	observability.IncShareRecompute("create")
	return group, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForUser returns groups where the user is admin or member.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.db.SelectContext(ctx, &groups,
		`SELECT DISTINCT g.id, g.name, g.description, g.admin_id, g.currency, g.group_types, g.amount, g.created_at
         FROM groups g
         LEFT JOIN group_members gm ON gm.group_id = g.id
         WHERE g.admin_id=$1 OR gm.user_id=$1
         ORDER BY g.created_at DESC, g.id DESC`,
		userID)
	return groups, err
}

// ListMembers returns memberships joined with public profile fields.
func (r *GroupRepo) ListMembers(ctx context.Context, groupID int) ([]models.Member, error) {
	members := []models.Member{}
	err := r.db.SelectContext(ctx, &members,
		`SELECT gm.user_id, u.username, u.first_name, u.last_name, gm.share, gm.created_at AS joined_at
         FROM group_members gm
         INNER JOIN users u ON u.id = gm.user_id
         WHERE gm.group_id=$1
         ORDER BY gm.created_at ASC, gm.id ASC`,
		groupID)
	return members, err
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`,
		groupID, userID)
	return exists, err
}

// AddMember inserts the membership and recomputes every member's share
// with the new divisor, all in one transaction.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID int) (models.Membership, error) {
	ctx, span := otel.Tracer("splitshare/ledger").Start(ctx, "group.add_member")
	defer span.End()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Membership{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1 FOR UPDATE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return models.Membership{}, err
	}
	if err != nil {
		return models.Membership{}, err
	}

	var membership models.Membership
	err = tx.GetContext(ctx, &membership,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
         RETURNING id, group_id, user_id, share, created_at`,
		groupID, userID)
	if isUniqueViolation(err) {
		err = ErrDuplicateMember
		return models.Membership{}, err
	}
	if err != nil {
		return models.Membership{}, err
	}

	if err = recomputeShares(ctx, tx, groupID, group.Amount); err != nil {
		return models.Membership{}, err
	}

	err = tx.GetContext(ctx, &membership,
		`SELECT id, group_id, user_id, share, created_at FROM group_members WHERE id=$1`,
		membership.ID)
	if err != nil {
		return models.Membership{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Membership{}, err
	}

	span.SetAttributes(attribute.Int("group.id", groupID), attribute.Int("member.id", userID))
	observability.IncShareRecompute("add")
	return membership, nil
}

// RemoveMember deletes the membership and recomputes the remaining shares.
// Removing the last member leaves the group memberless with its amount
// undistributed.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID int) (models.Membership, error) {
	ctx, span := otel.Tracer("splitshare/ledger").Start(ctx, "group.remove_member")
	defer span.End()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Membership{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1 FOR UPDATE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return models.Membership{}, err
	}
	if err != nil {
		return models.Membership{}, err
	}

	var removed models.Membership
	err = tx.GetContext(ctx, &removed,
		`DELETE FROM group_members WHERE group_id=$1 AND user_id=$2
         RETURNING id, group_id, user_id, share, created_at`,
		groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrMemberNotFound
		return models.Membership{}, err
	}
	if err != nil {
		return models.Membership{}, err
	}

	if err = recomputeShares(ctx, tx, groupID, group.Amount); err != nil {
		return models.Membership{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Membership{}, err
	}

	span.SetAttributes(attribute.Int("group.id", groupID), attribute.Int("member.id", userID))
	observability.IncShareRecompute("remove")
	return removed, nil
}

// UpdateGroup applies a partial scalar update. When the amount changes the
// shares are recomputed in the same transaction so the split invariant
// holds across amount edits as well as membership changes.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID int, update GroupUpdate) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group,
		`UPDATE groups SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            currency = COALESCE($4, currency),
            group_types = COALESCE($5, group_types),
            amount = COALESCE($6, amount)
         WHERE id=$1
         RETURNING `+groupColumns,
		groupID, update.Name, update.Description, update.Currency, update.GroupTypes, update.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return models.Group{}, err
	}
	if isUniqueViolation(err) {
		err = ErrDuplicateGroup
		return models.Group{}, err
	}
	if err != nil {
		return models.Group{}, err
	}

	if update.Amount != nil {
		if err = recomputeShares(ctx, tx, groupID, group.Amount); err != nil {
			return models.Group{}, err
		}
		observability.IncShareRecompute("amount")
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// recomputeShares rewrites every member's share as an equal division of
// amount, computed up front and applied as one batch inside the caller's
// transaction. Earliest members by join order absorb remainder cents.
func recomputeShares(ctx context.Context, tx *sqlx.Tx, groupID int, amount float64) error {
	var memberRowIDs []int
	if err := tx.SelectContext(ctx, &memberRowIDs,
		`SELECT id FROM group_members WHERE group_id=$1 ORDER BY created_at ASC, id ASC`,
		groupID); err != nil {
		return err
	}
	if len(memberRowIDs) == 0 {
		return nil
	}

	shares := ledger.EqualShares(amount, len(memberRowIDs))
	for i, rowID := range memberRowIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE group_members SET share=$2 WHERE id=$1`,
			rowID, shares[i]); err != nil {
			return err
		}
	}
	return nil
}
