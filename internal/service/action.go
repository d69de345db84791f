package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/repository"
)

// DuplicateActionWindow is how long an identical action is suppressed after
// it was last recorded.
const DuplicateActionWindow = 60 * time.Second

// ActionService writes the user activity log.
//
// The log is append-only: one row per thing a user did ("alice likes
// image X", "bob bookmarked image Y"). Rows are never updated, and
// unliking does not remove the earlier "likes" row; the log records what
// happened, not the current state. Current state lives in image_likes.
type ActionService struct {
	actions repository.ActionRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewActionService(actions repository.ActionRepository, logger *slog.Logger) *ActionService {
	return &ActionService{
		actions: actions,
		logger:  logger,
		now:     time.Now,
	}
}

// Record appends an action unless the same user performed the same verb on
// the same target within DuplicateActionWindow. It reports whether a new
// entry was written.
//
// DUPLICATE WINDOW:
// Clicking like, unlike, like again in quick succession would otherwise
// write two identical "likes" rows seconds apart. Record first asks the
// repository whether a matching row exists since now-60s:
//
//	12:00:00  like   → written
//	12:00:10  unlike → (unlike is not logged)
//	12:00:20  like   → skipped, within 60s of 12:00:00
//	12:01:05  like   → written
//
// The check and the insert are two statements, not one transaction. Two
// concurrent requests from the same user can both pass the check; the
// worst outcome is one extra log row, which the window exists to reduce,
// not to forbid.
func (s *ActionService) Record(ctx context.Context, userID, verb, targetType, targetID string) (bool, error) {
	// UTC so the stored TEXT timestamps compare correctly in ExistsSince.
	now := s.now().UTC()

	dup, err := s.actions.ExistsSince(ctx, userID, verb, targetType, targetID, now.Add(-DuplicateActionWindow))
	if err != nil {
		return false, fmt.Errorf("service/action: checking recent actions: %w", err)
	}
	if dup {
		s.logger.Debug("duplicate action skipped",
			slog.String("userID", userID),
			slog.String("verb", verb),
			slog.String("targetID", targetID),
		)
		return false, nil
	}

	action := &model.Action{
		UserID:     userID,
		Verb:       verb,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  now,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		return false, fmt.Errorf("service/action: recording %q: %w", verb, err)
	}
	return true, nil
}

// Recent returns the latest actions of a user, newest first. The
// /account/me/ endpoint shows them alongside the profile.
func (s *ActionService) Recent(ctx context.Context, userID string, limit int) ([]model.Action, error) {
	actions, err := s.actions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("service/action: listing actions of %s: %w", userID, err)
	}
	return actions, nil
}
