package models

import "time"

// Group tracks a shared expense pot. Amount is divided evenly among the
// current members; every membership change recomputes all shares.
type Group struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	AdminID     int       `db:"admin_id" json:"admin_id"`
	Currency    string    `db:"currency" json:"currency"`
	GroupTypes  string    `db:"group_types" json:"group_types"`
	Amount      float64   `db:"amount" json:"amount"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Membership links a user to a group and carries the derived share.
type Membership struct {
	ID        int       `db:"id" json:"id"`
	GroupID   int       `db:"group_id" json:"group_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Share     float64   `db:"share" json:"share"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Member is a membership joined with the member's public profile.
type Member struct {
	UserID    int       `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Share     float64   `db:"share" json:"share"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}
