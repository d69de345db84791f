package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/fetcher"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/repository"
)

// =========================================================================
// In-memory fakes of the repository interfaces. They keep just enough
// behaviour (ordering, idempotent likes, not-found errors) for the service
// rules to be exercised without a database.
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeImageRepo struct {
	mu     sync.Mutex
	images []*model.Image // insertion order; newest last
	likes  map[string]map[string]bool
	users  map[string]model.User
	nextID int

	createErr error
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{
		likes: make(map[string]map[string]bool),
		users: make(map[string]model.User),
	}
}

func (f *fakeImageRepo) Create(ctx context.Context, image *model.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	image.ID = fmt.Sprintf("img-%02d", f.nextID)
	image.CreatedAt = time.Now().UTC()
	copied := *image
	f.images = append(f.images, &copied)
	return nil
}

func (f *fakeImageRepo) find(id string) (*model.Image, bool) {
	for _, img := range f.images {
		if img.ID == id {
			c := *img
			c.TotalLikes = len(f.likes[id])
			return &c, true
		}
	}
	return nil, false
}

func (f *fakeImageRepo) GetByID(ctx context.Context, id string) (*model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if img, ok := f.find(id); ok {
		return img, nil
	}
	return nil, apperror.NotFound("image", id)
}

func (f *fakeImageRepo) GetByIDAndSlug(ctx context.Context, id, slug string) (*model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if img, ok := f.find(id); ok && img.Slug == slug {
		return img, nil
	}
	return nil, apperror.NotFound("image", id)
}

func (f *fakeImageRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Image{}
	for _, id := range ids {
		if img, ok := f.find(id); ok {
			out = append(out, *img)
		}
	}
	return out, nil
}

func (f *fakeImageRepo) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images), nil
}

func (f *fakeImageRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Image{}
	for i := len(f.images) - 1 - opts.Offset; i >= 0 && len(out) < opts.Limit; i-- {
		img, _ := f.find(f.images[i].ID)
		out = append(out, *img)
	}
	return out, nil
}

func (f *fakeImageRepo) AddLike(ctx context.Context, imageID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likes[imageID] == nil {
		f.likes[imageID] = make(map[string]bool)
	}
	f.likes[imageID][userID] = true
	return nil
}

func (f *fakeImageRepo) RemoveLike(ctx context.Context, imageID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.likes[imageID], userID)
	return nil
}

func (f *fakeImageRepo) LikedBy(ctx context.Context, imageID string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.likes[imageID]))
	for id := range f.likes[imageID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []model.User{}
	for _, id := range ids {
		u, ok := f.users[id]
		if !ok {
			u = model.User{ID: id, Username: id}
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeImageRepo) ListLikedByUser(ctx context.Context, userID string) ([]model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Image{}
	for i := len(f.images) - 1; i >= 0; i-- {
		if f.likes[f.images[i].ID][userID] {
			img, _ := f.find(f.images[i].ID)
			out = append(out, *img)
		}
	}
	return out, nil
}

func (f *fakeImageRepo) likeCount(imageID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.likes[imageID])
}

type fakeActionRepo struct {
	mu      sync.Mutex
	actions []model.Action

	createErr error
}

func (f *fakeActionRepo) Create(ctx context.Context, action *model.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	action.ID = fmt.Sprintf("act-%d", len(f.actions)+1)
	f.actions = append(f.actions, *action)
	return nil
}

func (f *fakeActionRepo) ExistsSince(ctx context.Context, userID, verb, targetType, targetID string, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.actions {
		if a.UserID == userID && a.Verb == verb && a.TargetType == targetType &&
			a.TargetID == targetID && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeActionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Action{}
	for i := len(f.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.actions[i].UserID == userID {
			out = append(out, f.actions[i])
		}
	}
	return out, nil
}

func (f *fakeActionRepo) count(verb string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.actions {
		if a.Verb == verb {
			n++
		}
	}
	return n
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("username", user.Username)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	for _, u := range f.users {
		if u.GitHubID != 0 && u.GitHubID == user.GitHubID {
			u.Email = user.Email
			u.AvatarURL = user.AvatarURL
			*user = *u
			f.mu.Unlock()
			return nil
		}
	}
	f.mu.Unlock()
	return f.Create(ctx, user)
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL, name string) (*fetcher.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fetcher.Result{Path: "images/2026/10/18/" + name + ".jpg", ContentType: "image/jpeg", Size: 42}, nil
}
