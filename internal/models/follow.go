package models

import "time"

// Follow is a directed edge: follower follows following.
// Uniqueness per ordered pair is enforced by the database index.
type Follow struct {
	ID          int       `db:"id" json:"id"`
	FollowerID  int       `db:"follower_id" json:"follower_id"`
	FollowingID int       `db:"following_id" json:"following_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
