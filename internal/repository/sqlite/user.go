package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB implements repository.UserRepository.
//
// One table serves both account kinds. Local accounts have a password
// hash and a NULL github_id; GitHub accounts have a github_id and an
// empty hash. The UNIQUE constraints on username and github_id are the
// only guard against duplicates: the code inserts and reacts to the
// constraint error instead of checking first.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, username, email, password_hash, github_id, avatar_url, created_at, updated_at`

// Create inserts a new user. A taken username yields apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		nullableGitHubID(user.GitHubID),
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// Upsert inserts or updates a user based on their GitHub ID.
//
// An existing account keeps its internal ID and username; only the profile
// fields GitHub owns (email, avatar) are refreshed. A new account takes the
// GitHub login as username, suffixed with the GitHub ID if that name is
// already used by a local account.
//
// UPSERT FLOW:
//
//	github_id known          → UPDATE email, avatar_url; copy row into user
//	new, login free          → INSERT with username = GitHub login
//	new, login taken locally → INSERT with username = "<login>-<githubID>"
//
// The lookup and the insert are separate statements. Two first-time
// callbacks for the same GitHub user racing each other would have the
// second INSERT fail on the github_id UNIQUE index; that surfaces as a
// sign-in error, and the retry finds the row.
func (u *UserDB) Upsert(ctx context.Context, user *model.User) error {
	existing, err := u.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE github_id = ?`, user.GitHubID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existing != nil {
		existing.Email = user.Email
		existing.AvatarURL = user.AvatarURL
		existing.UpdatedAt = time.Now().UTC()
		_, err = u.conn.ExecContext(ctx,
			`UPDATE users SET email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
			existing.Email,
			existing.AvatarURL,
			existing.UpdatedAt,
			existing.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
		}
		*user = *existing
		return nil
	}

	err = u.Create(ctx, user)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return err
	}
	user.Username = fmt.Sprintf("%s-%d", user.Username, user.GitHubID)
	return u.Create(ctx, user)
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := u.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetUserByUsername looks a user up by username, case-sensitively.
func (u *UserDB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := u.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return user, nil
}

// scanOne runs a single-row query selecting userColumns. It returns
// sql.ErrNoRows unchanged so each caller can decide what "missing" means.
func (u *UserDB) scanOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var (
		user     model.User
		githubID sql.NullInt64
	)
	err := u.conn.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&githubID,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.GitHubID = githubID.Int64
	return &user, nil
}

// nullableGitHubID stores 0 as NULL. SQLite allows many NULLs under a
// UNIQUE index but only one 0, and every local account has GitHubID 0.
func nullableGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// isUniqueViolation matches the driver's constraint error text. modernc
// reports "constraint failed: UNIQUE constraint failed: users.username".
//
// Matching text is brittle, but the typed alternative means importing
// modernc.org/sqlite/lib for the extended result code in every
// repository. The test suite would catch a wording change.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
