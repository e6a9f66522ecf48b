package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"splitshare-service/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already taken")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const userColumns = `id, first_name, last_name, username, email, password_hash, phone_number, photo_url, date_of_birth, email_verified, refresh_token, created_at`

// NewUserParams carries the fields needed to create an account.
type NewUserParams struct {
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	PhoneNumber  *string
	PhotoURL     *string
	DateOfBirth  *string
}

// UserUpdate holds the optional profile fields of a partial update.
type UserUpdate struct {
	FirstName   *string
	LastName    *string
	Username    *string
	Email       *string
	PhoneNumber *string
	PhotoURL    *string
}

// UserRepository abstracts account persistence. Only CreateUser,
// UpdatePassword and the refresh-token methods touch credential columns.
type UserRepository interface {
	CreateUser(ctx context.Context, params NewUserParams) (models.User, error)
	GetUserByID(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, id int, update UserUpdate) (models.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetRefreshToken(ctx context.Context, id int, token string) error
	ClearRefreshToken(ctx context.Context, id int) error
	DeleteUser(ctx context.Context, id int) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts an account row. Username and email must already be
// normalized (trimmed, lower-cased) by the caller.
func (r *UserRepo) CreateUser(ctx context.Context, params NewUserParams) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`INSERT INTO users (first_name, last_name, username, email, password_hash, phone_number, photo_url, date_of_birth)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING `+userColumns,
		params.FirstName, params.LastName, params.Username, params.Email,
		params.PasswordHash, params.PhoneNumber, params.PhotoURL, params.DateOfBirth)
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUser
	}
	return user, err
}

// GetUserByID fetches an account by id.
func (r *UserRepo) GetUserByID(ctx context.Context, id int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername fetches an account by its unique username.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, strings.ToLower(username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail fetches an account by its unique email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateUser applies a partial profile update via COALESCE so omitted
// fields keep their current values.
func (r *UserRepo) UpdateUser(ctx context.Context, id int, update UserUpdate) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`UPDATE users SET
            first_name = COALESCE($2, first_name),
            last_name = COALESCE($3, last_name),
            username = COALESCE($4, username),
            email = COALESCE($5, email),
            phone_number = COALESCE($6, phone_number),
            photo_url = COALESCE($7, photo_url)
         WHERE id=$1
         RETURNING `+userColumns,
		id, update.FirstName, update.LastName, update.Username, update.Email,
		update.PhoneNumber, update.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUser
	}
	return user, err
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUserNotFound)
}

// SetRefreshToken overwrites the single refresh-token slot, invalidating
// any previously issued refresh token for the account.
func (r *UserRepo) SetRefreshToken(ctx context.Context, id int, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET refresh_token=$2 WHERE id=$1`, id, token)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUserNotFound)
}

// ClearRefreshToken empties the refresh-token slot.
func (r *UserRepo) ClearRefreshToken(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET refresh_token=NULL WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUserNotFound)
}

// DeleteUser removes the account. Memberships, follow edges, messages and
// admin-owned groups cascade at the database level.
func (r *UserRepo) DeleteUser(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrUserNotFound)
}

func requireRow(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
