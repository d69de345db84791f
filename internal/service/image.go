// Package service holds the business rules of the bookmarks site.
//
// Handlers call services with plain values; services talk to storage only
// through the interfaces in internal/repository, so every rule here can be
// tested with in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"

	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/fetcher"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/pagination"
	"github.com/sakif/bookmarks/internal/ranking"
	"github.com/sakif/bookmarks/internal/repository"
)

const (
	// PageSize is the number of images on one list page.
	PageSize = 8

	// ActionLike is the like-toggle value that adds a like. Any other
	// value removes it.
	ActionLike = "like"

	defaultSlug = "image"
)

// ImageForm is the data a user submits to bookmark an image. The bookmarklet
// sends the same fields as query parameters to pre-fill the form.
type ImageForm struct {
	Title       string `form:"title"       validate:"required,max=200"`
	URL         string `form:"url"         validate:"required,url,imageext"`
	Description string `form:"description" validate:"max=2000"`
	Recipe      string `form:"recipe"      validate:"max=200"`
}

func (f *ImageForm) normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.URL = strings.TrimSpace(f.URL)
	f.Description = strings.TrimSpace(f.Description)
	f.Recipe = strings.TrimSpace(f.Recipe)
}

// ImageDetail is an image together with the users who liked it.
type ImageDetail struct {
	Image   *model.Image
	LikedBy []model.User
}

// LikedByUser reports whether userID is in the liked-by set.
func (d *ImageDetail) LikedByUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, u := range d.LikedBy {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// ImageService implements bookmarking, likes and listings.
//
// DEPENDENCIES:
//   - images:  persistence, including the liked-by set
//   - actions: the activity log; a failed log write never undoes the
//     operation that triggered it
//   - fetcher: downloads the bookmarked file; nil keeps only the URL
//   - views:   Redis view counter; nil or disabled turns ranking off
type ImageService struct {
	images   repository.ImageRepository
	actions  *ActionService
	fetcher  fetcher.Fetcher  // nil: keep only the remote URL
	views    *ranking.Counter // nil or disabled: no view tracking
	validate *validator.Validate
	logger   *slog.Logger
}

func NewImageService(
	images repository.ImageRepository,
	actions *ActionService,
	fetch fetcher.Fetcher,
	views *ranking.Counter,
	logger *slog.Logger,
) *ImageService {
	return &ImageService{
		images:   images,
		actions:  actions,
		fetcher:  fetch,
		views:    views,
		validate: newValidator(),
		logger:   logger,
	}
}

// Create bookmarks a new image owned by userID.
//
// An invalid form returns FormErrors and stores nothing. On success the
// image is persisted and a "bookmarked image" action is logged.
//
// ORDER OF OPERATIONS:
//
//	1. normalize + validate   → FormErrors, nothing stored
//	2. slugify the title      → "Sunset over Lisbon" → "sunset-over-lisbon"
//	3. download the file      → FormErrors{"url": ...} on failure
//	4. insert the row         → the image now exists
//	5. log the action         → failure logged only
//
// The download runs before the insert so a URL that does not serve an
// image never leaves a row behind.
func (s *ImageService) Create(ctx context.Context, userID string, form ImageForm) (*model.Image, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("login required to bookmark images")
	}

	form.normalize()
	if err := validateForm(s.validate, form); err != nil {
		return nil, err
	}

	image := &model.Image{
		UserID:      userID,
		Title:       form.Title,
		Slug:        slugify(form.Title),
		URL:         form.URL,
		Description: form.Description,
		Recipe:      form.Recipe,
	}

	if s.fetcher != nil {
		res, err := s.fetcher.Fetch(ctx, form.URL, image.Slug)
		if err != nil {
			s.logger.Warn("image download failed",
				slog.String("url", form.URL),
				slog.String("error", err.Error()),
			)
			return nil, FormErrors{"url": downloadMessage(err)}
		}
		image.File = res.Path
	}

	if err := s.images.Create(ctx, image); err != nil {
		return nil, fmt.Errorf("service/image: creating image: %w", err)
	}

	// The image is already stored; a failed log write is reported but does
	// not undo the bookmark.
	if _, err := s.actions.Record(ctx, userID, model.VerbBookmarked, model.TargetImage, image.ID); err != nil {
		s.logger.Error("recording bookmark action",
			slog.String("imageID", image.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("image bookmarked",
		slog.String("imageID", image.ID),
		slog.String("userID", userID),
	)
	return image, nil
}

// Get returns the image addressed by (id, slug) and the users who liked it.
//
// The liked-by list is loaded in full; the detail page shows every name.
// An image with thousands of likes would want a count plus a sample
// instead, but likes here come from people who know each other.
func (s *ImageService) Get(ctx context.Context, id, slug string) (*ImageDetail, error) {
	image, err := s.images.GetByIDAndSlug(ctx, id, slug)
	if err != nil {
		return nil, err
	}

	likedBy, err := s.images.LikedBy(ctx, image.ID)
	if err != nil {
		return nil, fmt.Errorf("service/image: loading likes of %s: %w", image.ID, err)
	}
	return &ImageDetail{Image: image, LikedBy: likedBy}, nil
}

// Like adds (action "like") or removes (any other action) userID from the
// image's liked-by set. Both directions are idempotent. Only a like is
// logged.
//
// ERROR ORDER:
// Missing parameters are reported before authentication is checked, so an
// anonymous POST with no id answers the same {"status":"error"} a logged
// in one would. The checks run as:
//
//	id or action empty  → apperror.ErrValidation
//	no user             → apperror.ErrUnauthorized (HTTP 401)
//	unknown image       → apperror.ErrNotFound
//
// IDEMPOTENCY:
// Liking twice leaves one like; unliking something never liked is a no-op.
// The browser can retry a request that timed out without checking state
// first.
func (s *ImageService) Like(ctx context.Context, userID, imageID, action string) error {
	if imageID == "" || action == "" {
		return apperror.ValidationFailed("id", "id and action are required")
	}
	if userID == "" {
		return apperror.Unauthorized("login required to like images")
	}

	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return err
	}

	if action != ActionLike {
		if err := s.images.RemoveLike(ctx, image.ID, userID); err != nil {
			return fmt.Errorf("service/image: removing like: %w", err)
		}
		return nil
	}

	if err := s.images.AddLike(ctx, image.ID, userID); err != nil {
		return fmt.Errorf("service/image: adding like: %w", err)
	}
	// Same rule as Create: the like row is committed, so a failed log
	// write is logged and the caller still sees success.
	if _, err := s.actions.Record(ctx, userID, model.VerbLikes, model.TargetImage, image.ID); err != nil {
		s.logger.Error("recording like action",
			slog.String("imageID", image.ID),
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// List returns one page of all images, newest first.
//
// PAGINATION RECOVERY:
// The page number comes straight from the query string, so it can be
// anything. List never fails on it for a full page render:
//
//	?page=abc, ?page=    → page 1
//	?page=0, ?page=99    → the last page
//	no images at all     → page 1 with no items
//
// The fragment flag changes one rule. The infinite-scroll script keeps
// asking for page+1 until it gets nothing back; returning the last page
// again would append the same eight images forever. With fragment set an
// out-of-range page returns pagination.ErrEmptyPage, and the handler
// answers with an empty body, which the script takes as the end.
func (s *ImageService) List(ctx context.Context, rawPage string, fragment bool) (*pagination.Page[model.Image], error) {
	count, err := s.images.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/image: counting images: %w", err)
	}

	p := pagination.New(count, PageSize)
	n, err := p.Validate(rawPage)
	switch {
	case errors.Is(err, pagination.ErrPageNotAnInteger):
		n = 1
	case errors.Is(err, pagination.ErrEmptyPage):
		if fragment {
			return nil, err
		}
		n = p.NumPages()
	}

	// Bounds yields limit 0 on an empty table. Skip the query and render
	// an empty page.
	items := []model.Image{}
	if offset, limit := p.Bounds(n); limit > 0 {
		items, err = s.images.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("service/image: listing page %d: %w", n, err)
		}
	}
	return pagination.NewPage(p, n, items), nil
}

// Liked returns the images userID has liked. Anonymous callers get an
// empty list.
//
// "Bookmarked" in the UI means liked: the page lists what the visitor
// marked with the like button, not what they added with the bookmarklet.
func (s *ImageService) Liked(ctx context.Context, userID string) ([]model.Image, error) {
	if userID == "" {
		return []model.Image{}, nil
	}

	images, err := s.images.ListLikedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/image: listing likes of %s: %w", userID, err)
	}
	return images, nil
}

// RecordView counts one detail-page view and returns the total. With
// ranking disabled it returns 0 and records nothing.
func (s *ImageService) RecordView(ctx context.Context, imageID string) (int64, error) {
	return s.views.Incr(ctx, imageID)
}

// RankingEnabled reports whether view counts are tracked at all.
func (s *ImageService) RankingEnabled() bool {
	return s.views.Enabled()
}

// RankedImage is an entry of the most-viewed list.
type RankedImage struct {
	model.Image
	Views int64
}

// Ranking returns up to n of the most viewed images, most viewed first,
// each with its view total.
//
// The sorted set can name images that were deleted since; GetByIDs skips
// them, so the result may be shorter than n.
func (s *ImageService) Ranking(ctx context.Context, n int) ([]RankedImage, error) {
	ids, err := s.views.Top(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []RankedImage{}, nil
	}

	images, err := s.images.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/image: loading ranked images: %w", err)
	}

	ranked := make([]RankedImage, 0, len(images))
	for _, img := range images {
		views, err := s.views.Views(ctx, img.ID)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedImage{Image: img, Views: views})
	}
	return ranked, nil
}

// slugify turns a title into the URL segment of the detail page.
// gosimple/slug transliterates ("Café" → "cafe"); a title with nothing
// transliterable ("🌅🌅") falls back to defaultSlug.
func slugify(title string) string {
	if s := slug.Make(title); s != "" {
		return s
	}
	return defaultSlug
}

// downloadMessage turns a fetcher error into the message shown under the
// URL field. Network details stay in the log.
func downloadMessage(err error) string {
	switch {
	case errors.Is(err, fetcher.ErrUnsupportedType):
		return "The URL does not point to a JPEG or PNG image."
	case errors.Is(err, fetcher.ErrTooLarge):
		return "The image is too large."
	default:
		return "The image could not be downloaded."
	}
}
