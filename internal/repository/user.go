package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/templui/authapi/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrPasswordChanged    = errors.New("password changed concurrently")
)

// UserRepository is the credential store. Uniqueness of username, email and
// reset token is enforced by the schema; violations surface as ErrDuplicate*.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByUsername(ctx context.Context, username string) (*model.User, error)
	ByResetToken(ctx context.Context, token string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, changes ProfileChanges) error
	ClearProfilePic(ctx context.Context, id, name string, now time.Time) error
	SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error
	ConsumeResetToken(ctx context.Context, userID, token, passwordHash string, now time.Time) error
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

const userColumns = `id, username, email, password_hash, profile_pic, reset_token, reset_token_expires_at, created_at, updated_at`

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.ProfilePic,
		user.ResetToken,
		user.ResetTokenExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *userRepository) ByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *userRepository) ByResetToken(ctx context.Context, token string) (*model.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token = $1`, token)
}

func (r *userRepository) one(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ProfileChanges are the columns a profile edit owns. Reset token columns are
// never written from here, so an edit cannot resurrect a consumed token.
type ProfileChanges struct {
	Username   string
	ProfilePic *string
	UpdatedAt  time.Time

	// PasswordHash, when set, replaces CurrentHash. The row is only updated
	// while CurrentHash is still the stored hash.
	PasswordHash string
	CurrentHash  string
}

// UpdateProfile writes one profile edit in a single statement. With a password
// change it returns ErrPasswordChanged when the stored hash moved on since the
// caller read it.
func (r *userRepository) UpdateProfile(ctx context.Context, id string, c ProfileChanges) error {
	query := `UPDATE users SET username = $1, profile_pic = $2, updated_at = $3`
	args := []any{c.Username, c.ProfilePic, c.UpdatedAt}

	if c.PasswordHash != "" {
		query += `, password_hash = $4 WHERE id = $5 AND password_hash = $6`
		args = append(args, c.PasswordHash, id, c.CurrentHash)
	} else {
		query += ` WHERE id = $4`
		args = append(args, id)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapUniqueViolation(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if c.PasswordHash != "" {
			return ErrPasswordChanged
		}
		return ErrUserNotFound
	}

	return nil
}

// ClearProfilePic unsets the avatar, but only while name is still the stored one.
func (r *userRepository) ClearProfilePic(ctx context.Context, id, name string, now time.Time) error {
	query := `
		UPDATE users
		SET profile_pic = NULL, updated_at = $1
		WHERE id = $2
		AND profile_pic = $3
	`

	result, err := r.db.ExecContext(ctx, query, now, id, name)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetResetToken stores a pending reset token, replacing any earlier one.
func (r *userRepository) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	query := `
		UPDATE users
		SET reset_token = $1, reset_token_expires_at = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, token, expiresAt, now, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ConsumeResetToken replaces the password and clears the reset token, but only
// while the token is still the one stored on the user. Of two concurrent
// consumers exactly one sees a row updated; the other gets ErrResetTokenNotFound.
func (r *userRepository) ConsumeResetToken(ctx context.Context, userID, token, passwordHash string, now time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $1, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $2
		WHERE id = $3
		AND reset_token = $4
	`

	result, err := r.db.ExecContext(ctx, query, passwordHash, now, userID, token)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrResetTokenNotFound
	}

	return nil
}

// ClearExpiredResetTokens drops reset tokens whose deadline has passed.
func (r *userRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET reset_token = NULL, reset_token_expires_at = NULL
		WHERE reset_token IS NOT NULL
		AND reset_token_expires_at IS NOT NULL
		AND reset_token_expires_at <= $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// mapUniqueViolation converts driver-specific unique constraint errors
// (PostgreSQL 23505, SQLite SQLITE_CONSTRAINT_UNIQUE) into repository errors.
func mapUniqueViolation(err error) error {
	var detail string

	var pgErr *pgconn.PgError
	var liteErr *sqlite.Error
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		detail = pgErr.ConstraintName
	case errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		detail = liteErr.Error()
	default:
		return err
	}

	switch {
	case strings.Contains(detail, "email"):
		return ErrDuplicateEmail
	case strings.Contains(detail, "username"):
		return ErrDuplicateUsername
	default:
		return err
	}
}
