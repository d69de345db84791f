package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/repository"
)

// newTestDB opens a fresh in-memory database that is closed with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestImage(t *testing.T, db *DB, owner *model.User, title string) *model.Image {
	t.Helper()
	img := &model.Image{
		UserID: owner.ID,
		Title:  title,
		Slug:   title,
		URL:    "https://example.com/" + title + ".jpg",
	}
	if err := db.Images().Create(context.Background(), img); err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	return img
}

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestImageCreate(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "ada")

	img := &model.Image{
		UserID:      owner.ID,
		Title:       "Sunset",
		Slug:        "sunset",
		URL:         "https://example.com/sunset.jpg",
		Description: "over the sea",
		Recipe:      "paella",
	}
	if err := db.Images().Create(context.Background(), img); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if img.ID == "" {
		t.Error("Create() did not set image.ID")
	}
	if img.CreatedAt.IsZero() {
		t.Error("Create() did not set image.CreatedAt")
	}

	found, err := db.Images().GetByID(context.Background(), img.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Title != "Sunset" || found.Recipe != "paella" || found.UserID != owner.ID {
		t.Errorf("GetByID() = %+v, want the created image", found)
	}
	if found.TotalLikes != 0 {
		t.Errorf("TotalLikes = %d, want 0", found.TotalLikes)
	}
}

func TestImageCreate_UnknownOwner(t *testing.T) {
	db := newTestDB(t)

	err := db.Images().Create(context.Background(), &model.Image{
		UserID: "nobody", Title: "x", Slug: "x", URL: "https://example.com/x.png",
	})
	if err == nil {
		t.Fatal("Create() should fail the foreign key check for an unknown owner")
	}
}

func TestImageGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Images().GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestImageGetByIDAndSlug(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "ada")
	img := createTestImage(t, db, owner, "tower")

	found, err := db.Images().GetByIDAndSlug(context.Background(), img.ID, "tower")
	if err != nil {
		t.Fatalf("GetByIDAndSlug() error = %v", err)
	}
	if found.ID != img.ID {
		t.Errorf("ID = %q, want %q", found.ID, img.ID)
	}

	_, err = db.Images().GetByIDAndSlug(context.Background(), img.ID, "bridge")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("wrong slug: error = %v, want ErrNotFound", err)
	}
}

func TestImageGetByIDs_KeepsOrder(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "ada")
	a := createTestImage(t, db, owner, "a")
	b := createTestImage(t, db, owner, "b")
	c := createTestImage(t, db, owner, "c")

	images, err := db.Images().GetByIDs(context.Background(), []string{c.ID, "missing", a.ID, b.ID})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("GetByIDs() returned %d images, want 3", len(images))
	}
	want := []string{c.ID, a.ID, b.ID}
	for i, img := range images {
		if img.ID != want[i] {
			t.Errorf("images[%d] = %s, want %s", i, img.ID, want[i])
		}
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestImageList_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "ada")
	createTestImage(t, db, owner, "first")
	createTestImage(t, db, owner, "second")
	last := createTestImage(t, db, owner, "third")

	images, err := db.Images().List(context.Background(), repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("List() returned %d images, want 3", len(images))
	}
	if images[0].ID != last.ID {
		t.Errorf("List()[0] = %s, want newest image %s", images[0].Title, last.Title)
	}
}

func TestImageList_Pagination(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "ada")
	for i := 0; i < 9; i++ {
		createTestImage(t, db, owner, fmt.Sprintf("img-%d", i))
	}

	n, err := db.Images().Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 9 {
		t.Errorf("Count() = %d, want 9", n)
	}

	page1, err := db.Images().List(context.Background(), repository.ListOptions{Limit: 8, Offset: 0})
	if err != nil {
		t.Fatalf("List() page 1 error = %v", err)
	}
	page2, err := db.Images().List(context.Background(), repository.ListOptions{Limit: 8, Offset: 8})
	if err != nil {
		t.Fatalf("List() page 2 error = %v", err)
	}
	if len(page1) != 8 || len(page2) != 1 {
		t.Errorf("page sizes = %d, %d, want 8, 1", len(page1), len(page2))
	}
}

// =========================================================================
// LIKE TESTS
// =========================================================================

func TestAddLike_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "ada")
	fan := createTestUser(t, db, "grace")
	img := createTestImage(t, db, owner, "tower")

	for i := 0; i < 2; i++ {
		if err := db.Images().AddLike(ctx, img.ID, fan.ID); err != nil {
			t.Fatalf("AddLike() #%d error = %v", i+1, err)
		}
	}

	users, err := db.Images().LikedBy(ctx, img.ID)
	if err != nil {
		t.Fatalf("LikedBy() error = %v", err)
	}
	if len(users) != 1 || users[0].ID != fan.ID {
		t.Errorf("LikedBy() = %+v, want exactly [%s]", users, fan.Username)
	}

	found, err := db.Images().GetByID(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.TotalLikes != 1 {
		t.Errorf("TotalLikes = %d, want 1", found.TotalLikes)
	}
}

func TestRemoveLike_AbsentUserIsNoop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "ada")
	img := createTestImage(t, db, owner, "tower")

	if err := db.Images().RemoveLike(ctx, img.ID, owner.ID); err != nil {
		t.Fatalf("RemoveLike() error = %v", err)
	}

	if err := db.Images().AddLike(ctx, img.ID, owner.ID); err != nil {
		t.Fatalf("AddLike() error = %v", err)
	}
	if err := db.Images().RemoveLike(ctx, img.ID, owner.ID); err != nil {
		t.Fatalf("RemoveLike() error = %v", err)
	}
	users, err := db.Images().LikedBy(ctx, img.ID)
	if err != nil {
		t.Fatalf("LikedBy() error = %v", err)
	}
	if len(users) != 0 {
		t.Errorf("LikedBy() returned %d users after unlike, want 0", len(users))
	}
}

func TestListLikedByUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "ada")
	fan := createTestUser(t, db, "grace")
	liked := createTestImage(t, db, owner, "liked")
	createTestImage(t, db, owner, "ignored")

	if err := db.Images().AddLike(ctx, liked.ID, fan.ID); err != nil {
		t.Fatalf("AddLike() error = %v", err)
	}

	images, err := db.Images().ListLikedByUser(ctx, fan.ID)
	if err != nil {
		t.Fatalf("ListLikedByUser() error = %v", err)
	}
	if len(images) != 1 || images[0].ID != liked.ID {
		t.Errorf("ListLikedByUser() = %+v, want only %q", images, liked.Title)
	}

	none, err := db.Images().ListLikedByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListLikedByUser() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListLikedByUser(owner) returned %d images, want 0", len(none))
	}
}
