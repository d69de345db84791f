package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/repository"
)

var _ repository.ActionRepository = (*ActionDB)(nil)

// ActionDB implements repository.ActionRepository. The table is append-only.
type ActionDB struct {
	conn *sql.DB
}

// Create appends an action. CreatedAt is kept when the caller set it, which
// lets the service stamp the action with the same clock it deduplicates on.
func (d *ActionDB) Create(ctx context.Context, action *model.Action) error {
	action.ID = xid.New().String()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	action.CreatedAt = action.CreatedAt.UTC()

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO actions (id, user_id, verb, target_type, target_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		action.ID,
		action.UserID,
		action.Verb,
		action.TargetType,
		action.TargetID,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating action %q: %w", action.Verb, err)
	}
	return nil
}

// ExistsSince reports whether an identical action was logged at or after since.
//
// created_at is compared as stored text. That only orders correctly
// because every writer stores UTC in the same layout; a local-time row
// would sort by its wall clock and slip through the window. The
// (user_id, created_at) index narrows the scan to one user's recent rows.
func (d *ActionDB) ExistsSince(ctx context.Context, userID, verb, targetType, targetID string, since time.Time) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM actions
		 WHERE user_id = ? AND verb = ? AND target_type = ? AND target_id = ? AND created_at >= ?`,
		userID, verb, targetType, targetID, since.UTC(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: looking up similar actions: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns the user's most recent actions, newest first.
// A non-positive limit means 20.
func (d *ActionDB) ListByUser(ctx context.Context, userID string, limit int) ([]model.Action, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, user_id, verb, target_type, target_id, created_at
		 FROM actions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing actions of %s: %w", userID, err)
	}
	defer rows.Close()

	actions := make([]model.Action, 0, limit)
	for rows.Next() {
		var a model.Action
		if err := rows.Scan(&a.ID, &a.UserID, &a.Verb, &a.TargetType, &a.TargetID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning action row: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating actions: %w", err)
	}
	return actions, nil
}
