package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"splitshare-service/internal/models"
)

var (
	ErrDuplicateFollow = errors.New("already following this user")
	ErrFollowNotFound  = errors.New("follow edge not found")
)

// FollowRepository abstracts follow-edge persistence. The composite unique
// index is the real duplicate guard; Exists is a fast path for friendlier
// error messages.
type FollowRepository interface {
	CreateFollow(ctx context.Context, followerID, followingID int) (models.Follow, error)
	DeleteFollow(ctx context.Context, followerID, followingID int) error
	Exists(ctx context.Context, followerID, followingID int) (bool, error)
	ListFollowers(ctx context.Context, userID int) ([]models.Profile, error)
	ListFollowing(ctx context.Context, userID int) ([]models.Profile, error)
}

// FollowRepo is a sqlx implementation of FollowRepository.
type FollowRepo struct {
	db *sqlx.DB
}

// NewFollowRepo constructs a FollowRepo.
func NewFollowRepo(db *sqlx.DB) *FollowRepo {
	return &FollowRepo{db: db}
}

// CreateFollow inserts a follow edge.
func (r *FollowRepo) CreateFollow(ctx context.Context, followerID, followingID int) (models.Follow, error) {
	var follow models.Follow
	err := r.db.GetContext(ctx, &follow,
		`INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)
         RETURNING id, follower_id, following_id, created_at`,
		followerID, followingID)
	if isUniqueViolation(err) {
		return models.Follow{}, ErrDuplicateFollow
	}
	return follow, err
}

// DeleteFollow removes a follow edge; the edge must exist.
func (r *FollowRepo) DeleteFollow(ctx context.Context, followerID, followingID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id=$1 AND following_id=$2`,
		followerID, followingID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrFollowNotFound)
}

// Exists checks for an edge.
func (r *FollowRepo) Exists(ctx context.Context, followerID, followingID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id=$1 AND following_id=$2)`,
		followerID, followingID)
	return exists, err
}

const profileColumns = `u.id, u.first_name, u.last_name, u.username, u.email, u.photo_url, u.email_verified, u.created_at`

// ListFollowers returns the public profiles of everyone following the user.
// An empty result is a valid outcome, not an error.
func (r *FollowRepo) ListFollowers(ctx context.Context, userID int) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT `+profileColumns+` FROM follows f
         INNER JOIN users u ON u.id = f.follower_id
         WHERE f.following_id=$1 ORDER BY f.created_at ASC`,
		userID)
	return profiles, err
}

// ListFollowing returns the public profiles of everyone the user follows.
func (r *FollowRepo) ListFollowing(ctx context.Context, userID int) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT `+profileColumns+` FROM follows f
         INNER JOIN users u ON u.id = f.following_id
         WHERE f.follower_id=$1 ORDER BY f.created_at ASC`,
		userID)
	return profiles, err
}
