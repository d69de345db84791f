package handler_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/bookmarks/internal/auth"
	"github.com/sakif/bookmarks/internal/flash"
	"github.com/sakif/bookmarks/internal/handler"
	"github.com/sakif/bookmarks/internal/model"
	sqliteRepo "github.com/sakif/bookmarks/internal/repository/sqlite"
	"github.com/sakif/bookmarks/internal/service"
)

const templateDir = "../../web/templates"

// testApp wires real services over an in-memory database, the same way
// the server does, minus the network-facing pieces.
type testApp struct {
	db       *sqliteRepo.DB
	imageSvc *service.ImageService
	images   *handler.ImageHandler
	accounts *handler.AccountHandler
	tokens   *auth.TokenService
	user     *model.User
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	flashes := flash.NewStore("test-session-secret-32-bytes!!!!", false)

	render, err := handler.NewRenderer(templateDir, flashes, logger)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	actions := service.NewActionService(db.Actions(), logger)
	imageSvc := service.NewImageService(db.Images(), actions, nil, nil, logger)
	accountSvc := service.NewAccountService(db.Users(), tokens, auth.NewPasswordServiceForTest(4), logger)

	user := &model.User{Username: "alice"}
	require.NoError(t, db.Users().Create(context.Background(), user))

	return &testApp{
		db:       db,
		imageSvc: imageSvc,
		images:   handler.NewImageHandler(imageSvc, render, flashes, logger),
		accounts: handler.NewAccountHandler(accountSvc, actions, nil, render, flashes, false, logger),
		tokens:   tokens,
		user:     user,
	}
}

// seed bookmarks n images owned by the test user.
func (a *testApp) seed(t *testing.T, n int) []*model.Image {
	t.Helper()
	out := make([]*model.Image, 0, n)
	for i := 1; i <= n; i++ {
		img, err := a.imageSvc.Create(context.Background(), a.user.ID, service.ImageForm{
			Title: fmt.Sprintf("Picture %d", i),
			URL:   fmt.Sprintf("https://example.com/%d.jpg", i),
		})
		require.NoError(t, err)
		out = append(out, img)
	}
	return out
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.ContextWithUserID(r.Context(), userID))
}

func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
