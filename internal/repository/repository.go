// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlite provides the implementation.
//
// WHY INTERFACES?
// The services import this package, never the sqlite one. That keeps the
// dependency arrow pointing one way (service → repository ← sqlite) and
// lets the service tests swap in map-backed fakes that run without a
// database. The interfaces are declared here, next to their consumer's
// needs, not next to the implementation.
//
// Conventions every implementation follows:
//   - Create fills in ID (and CreatedAt where the caller left it zero)
//   - a missing row is apperror.ErrNotFound, never sql.ErrNoRows
//   - list methods return an empty, non-nil slice when nothing matches
package repository

import (
	"context"
	"time"

	"github.com/sakif/bookmarks/internal/model"
)

// ListOptions selects a window of an ordered listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// ImageRepository stores images and their liked-by sets.
type ImageRepository interface {
	Create(ctx context.Context, image *model.Image) error
	// GetByID returns apperror.ErrNotFound when no image has this ID.
	GetByID(ctx context.Context, id string) (*model.Image, error)
	// GetByIDAndSlug returns apperror.ErrNotFound unless both match one image.
	GetByIDAndSlug(ctx context.Context, id, slug string) (*model.Image, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Image, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, opts ListOptions) ([]model.Image, error)

	// AddLike and RemoveLike are idempotent set operations.
	AddLike(ctx context.Context, imageID, userID string) error
	RemoveLike(ctx context.Context, imageID, userID string) error
	LikedBy(ctx context.Context, imageID string) ([]model.User, error)
	ListLikedByUser(ctx context.Context, userID string) ([]model.Image, error)
}

// UserRepository stores user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// Upsert inserts or updates a user keyed by GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// ActionRepository appends to and reads from the action log.
type ActionRepository interface {
	Create(ctx context.Context, action *model.Action) error
	// ExistsSince reports whether the same user/verb/target was logged at or after since.
	ExistsSince(ctx context.Context, userID, verb, targetType, targetID string, since time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Action, error)
}
