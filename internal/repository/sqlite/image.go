package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/repository"
)

var _ repository.ImageRepository = (*ImageDB)(nil)

// ImageDB implements repository.ImageRepository on the images and
// image_likes tables.
//
// TABLE LAYOUT:
//
//	images       one row per bookmark; user_id → users.id
//	image_likes  (image_id, user_id) primary key; the liked-by set
//
// The like count is never stored. It is computed per row by imageSelect,
// so it cannot drift from image_likes.
type ImageDB struct {
	conn *sql.DB
}

// imageSelect reads every image column plus the derived like count.
// Scan the rows with scanImage.
//
// The correlated subquery runs once per returned row. Pages are 8 rows
// and image_likes is indexed by its primary key, so it costs one index
// range scan per image.
const imageSelect = `
	SELECT i.id, i.user_id, i.title, i.slug, i.url, i.file, i.description, i.recipe, i.created_at,
	       (SELECT COUNT(*) FROM image_likes l WHERE l.image_id = i.id) AS total_likes
	FROM images i`

// Create inserts a new image. ID and CreatedAt are filled in here;
// the caller provides the slug.
//
// IDs are xids: 20 URL-safe characters, sortable by creation time, and
// generated without a round trip to the database.
func (d *ImageDB) Create(ctx context.Context, image *model.Image) error {
	image.ID = xid.New().String()
	image.CreatedAt = time.Now().UTC()

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO images (id, user_id, title, slug, url, file, description, recipe, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		image.ID,
		image.UserID,
		image.Title,
		image.Slug,
		image.URL,
		image.File,
		image.Description,
		image.Recipe,
		image.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating image: %w", err)
	}
	return nil
}

// GetByID retrieves a single image by its ID.
func (d *ImageDB) GetByID(ctx context.Context, id string) (*model.Image, error) {
	image, err := scanImage(d.conn.QueryRowContext(ctx, imageSelect+` WHERE i.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("image", id)
		}
		return nil, fmt.Errorf("sqlite: getting image %s: %w", id, err)
	}
	return image, nil
}

// GetByIDAndSlug retrieves the image addressed by a detail URL.
//
// Both parts must match. /images/detail/<id>/wrong-slug/ is a 404, not a
// redirect to the right slug.
func (d *ImageDB) GetByIDAndSlug(ctx context.Context, id, slug string) (*model.Image, error) {
	image, err := scanImage(d.conn.QueryRowContext(ctx,
		imageSelect+` WHERE i.id = ? AND i.slug = ?`, id, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("image", id)
		}
		return nil, fmt.Errorf("sqlite: getting image %s/%s: %w", id, slug, err)
	}
	return image, nil
}

// GetByIDs returns the images with the given IDs in the order of ids.
// Unknown IDs are skipped.
func (d *ImageDB) GetByIDs(ctx context.Context, ids []string) ([]model.Image, error) {
	if len(ids) == 0 {
		return []model.Image{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	found, err := d.query(ctx, imageSelect+` WHERE i.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting images by ids: %w", err)
	}

	byID := make(map[string]model.Image, len(found))
	for _, img := range found {
		byID[img.ID] = img
	}
	images := make([]model.Image, 0, len(found))
	for _, id := range ids {
		if img, ok := byID[id]; ok {
			images = append(images, img)
		}
	}
	return images, nil
}

// Count returns the total number of images.
func (d *ImageDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting images: %w", err)
	}
	return n, nil
}

// List returns images newest first. A non-positive limit returns every
// image from the offset on; the paginator always passes a positive one.
func (d *ImageDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Image, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	// rowid breaks ties between images created within the same clock tick,
	// so page boundaries are stable.
	images, err := d.query(ctx,
		imageSelect+` ORDER BY i.created_at DESC, i.rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing images: %w", err)
	}
	return images, nil
}

// AddLike puts userID into the image's liked-by set. Adding a user that is
// already present changes nothing.
//
// WHY ON CONFLICT DO NOTHING?
// The primary key on (image_id, user_id) already forbids a second like.
// A plain INSERT would turn a double click into a constraint error the
// service then has to recognise and swallow. A SELECT-then-INSERT would
// race between two requests. ON CONFLICT DO NOTHING lets SQLite resolve
// it inside the one statement: the row exists afterwards, and that is
// all the caller asked for.
func (d *ImageDB) AddLike(ctx context.Context, imageID, userID string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO image_likes (image_id, user_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (image_id, user_id) DO NOTHING`,
		imageID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: liking image %s: %w", imageID, err)
	}
	return nil
}

// RemoveLike takes userID out of the image's liked-by set. Removing an
// absent user is not an error.
//
// This is a hard delete. The history of likes lives in the actions table;
// image_likes only holds the current set.
func (d *ImageDB) RemoveLike(ctx context.Context, imageID, userID string) error {
	_, err := d.conn.ExecContext(ctx,
		`DELETE FROM image_likes WHERE image_id = ? AND user_id = ?`,
		imageID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unliking image %s: %w", imageID, err)
	}
	return nil
}

// LikedBy lists the users who like an image, in the order they liked it.
func (d *ImageDB) LikedBy(ctx context.Context, imageID string) ([]model.User, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, u.avatar_url, u.created_at, u.updated_at
		 FROM image_likes l
		 JOIN users u ON u.id = l.user_id
		 WHERE l.image_id = ?
		 ORDER BY l.created_at, l.rowid`,
		imageID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing likes of image %s: %w", imageID, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating likes: %w", err)
	}
	return users, nil
}

// ListLikedByUser returns every image the user likes, newest first.
func (d *ImageDB) ListLikedByUser(ctx context.Context, userID string) ([]model.Image, error) {
	images, err := d.query(ctx,
		imageSelect+`
		 JOIN image_likes ul ON ul.image_id = i.id
		 WHERE ul.user_id = ?
		 ORDER BY i.created_at DESC, i.rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing images liked by %s: %w", userID, err)
	}
	return images, nil
}

// query runs a statement built on imageSelect and scans every row.
func (d *ImageDB) query(ctx context.Context, query string, args ...any) ([]model.Image, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []model.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanImage reads one row in imageSelect column order.
func scanImage(row rowScanner) (*model.Image, error) {
	var img model.Image
	err := row.Scan(
		&img.ID,
		&img.UserID,
		&img.Title,
		&img.Slug,
		&img.URL,
		&img.File,
		&img.Description,
		&img.Recipe,
		&img.CreatedAt,
		&img.TotalLikes,
	)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
