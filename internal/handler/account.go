package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/auth"
	"github.com/sakif/bookmarks/internal/flash"
	"github.com/sakif/bookmarks/internal/model"
	"github.com/sakif/bookmarks/internal/service"
)

const (
	sectionAccount = "account"

	// LoginPath is where RequireAuth sends anonymous visitors.
	LoginPath = "/account/login/"
	// HomePath is where users land after signing in.
	HomePath = "/images/"

	stateCookie = "oauth_state"

	// recentActionsSize is how many log entries /account/me/ returns.
	recentActionsSize = 10
)

// AccountHandler manages sign-up, password and GitHub login, and logout.
//
// Every successful sign-in ends the same way: SetTokenCookie with the JWT
// from the service, then a 303 redirect. The redirect keeps the password
// POST out of the browser history, so Back does not offer to resend it.
type AccountHandler struct {
	accounts *service.AccountService
	activity *service.ActionService
	github   *auth.GitHubProvider // nil when GitHub login is not configured
	render   *Renderer
	flashes  *flash.Store
	secure   bool // set the Secure flag on cookies
	logger   *slog.Logger
}

func NewAccountHandler(
	accounts *service.AccountService,
	activity *service.ActionService,
	github *auth.GitHubProvider,
	render *Renderer,
	flashes *flash.Store,
	secure bool,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		activity: activity,
		github:   github,
		render:   render,
		flashes:  flashes,
		secure:   secure,
		logger:   logger,
	}
}

// nextOrHome returns next when it is a path on this site.
func nextOrHome(next string) string {
	if auth.IsLocalPath(next) {
		return next
	}
	return HomePath
}

// HandleLoginPage shows the password login form.
//
// HTTP: GET /account/login/?next=/images/
func (h *AccountHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, "", r.URL.Query().Get("next"), "")
}

// HandleLogin checks the submitted credentials.
//
// HTTP: POST /account/login/   form: username, password, next
//
// next round-trips through a hidden input: RequireAuth put it in the query
// string, the login page copied it into the form, and here it decides the
// redirect. It is honoured only when it is a local path; anything else
// lands on HomePath.
//
// Bad credentials re-render the form with 200 and the username kept. The
// password is never echoed back into the page.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	username := r.PostForm.Get("username")
	next := r.PostForm.Get("next")

	result, err := h.accounts.Login(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.renderLogin(w, r, username, next, publicMessage(err))
			return
		}
		h.logger.Error("login failed", slog.String("error", err.Error()))
		h.render.Error(w, r, http.StatusInternalServerError, publicMessage(err))
		return
	}

	auth.SetTokenCookie(w, result.Token, h.secure)
	http.Redirect(w, r, nextOrHome(next), http.StatusSeeOther)
}

// renderLogin shows the login form with an optional error line.
func (h *AccountHandler) renderLogin(w http.ResponseWriter, r *http.Request, username, next, errMsg string) {
	h.render.Page(w, r, http.StatusOK, pageLogin, sectionAccount, map[string]any{
		"Username":      username,
		"Next":          next,
		"Error":         errMsg,
		"GitHubEnabled": h.github != nil,
	})
}

// HandleRegisterPage shows the sign-up form.
//
// HTTP: GET /account/register/
func (h *AccountHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderRegister(w, r, service.RegisterForm{}, nil)
}

// HandleRegister creates an account and signs it in.
//
// HTTP: POST /account/register/   form: username, email, password
//
// On success the new user is signed in straight away (token cookie plus
// a "Welcome" flash) and sent to HomePath. Validation errors, including a
// taken username, re-render the form with 200; the password field is
// left blank.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	form := service.RegisterForm{
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}

	result, err := h.accounts.Register(r.Context(), form)
	if err != nil {
		var fe service.FormErrors
		if errors.As(err, &fe) {
			form.Password = ""
			h.renderRegister(w, r, form, fe)
			return
		}
		h.logger.Error("registration failed", slog.String("error", err.Error()))
		h.render.Error(w, r, http.StatusInternalServerError, publicMessage(err))
		return
	}

	auth.SetTokenCookie(w, result.Token, h.secure)
	h.notify(w, r, flash.LevelSuccess, fmt.Sprintf("Welcome, %s!", result.User.Username))
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (h *AccountHandler) renderRegister(w http.ResponseWriter, r *http.Request, form service.RegisterForm, errs service.FormErrors) {
	if errs == nil {
		errs = service.FormErrors{}
	}
	h.render.Page(w, r, http.StatusOK, pageRegister, sectionAccount, map[string]any{
		"Form":   form,
		"Errors": errs,
	})
}

// HandleLogout clears the token cookie.
//
// HTTP: POST /account/logout/
//
// The JWT stays valid until it expires; without the cookie the browser
// simply stops sending it.
//
// POST only: a GET logout could be triggered by an <img> tag on any page.
// SameSite=Lax keeps other sites from POSTing here with the cookie.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w)
	h.notify(w, r, flash.LevelInfo, "You have been logged out.")
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// meResponse is the user's profile with their latest activity appended.
// The user fields stay at the top level of the object.
type meResponse struct {
	*model.User
	RecentActions []model.Action `json:"recentActions"`
}

// HandleMe returns the logged-in user's profile as JSON.
//
// HTTP: GET /account/me/
// Auth: required
//
// RESPONSE FORMAT:
//
//	{
//	  "id": "...", "username": "alice", ...,
//	  "recentActions": [{"verb": "likes", "targetType": "image", "targetId": "...", ...}]
//	}
//
// recentActions holds at most recentActionsSize entries, newest first.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.accounts.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	recent, err := h.activity.Recent(r.Context(), user.ID, recentActionsSize)
	if err != nil {
		h.logger.Error("loading recent actions",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: user, RecentActions: recent})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state goes into a short-lived cookie and must come back
// unchanged on the callback.
func (h *AccountHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FAILURE MODES:
//
//	state missing or wrong   → 400 (possible CSRF; nothing is exchanged)
//	error=access_denied      → back to the login page with a notice
//	code missing             → 400
//	GitHub exchange fails    → 502 (GitHub or the network, not us)
//	storing the user fails   → 500
func (h *AccountHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		h.logger.Warn("auth callback: invalid state")
		h.render.Error(w, r, http.StatusBadRequest, "Invalid OAuth state.")
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		h.notify(w, r, flash.LevelError, "GitHub sign-in was cancelled.")
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.render.Error(w, r, http.StatusBadRequest, "Missing OAuth code.")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		h.render.Error(w, r, http.StatusBadGateway, "GitHub sign-in failed.")
		return
	}

	result, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		h.render.Error(w, r, http.StatusInternalServerError, "GitHub sign-in failed.")
		return
	}

	auth.SetTokenCookie(w, result.Token, h.secure)
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

// notify queues a flash message. Losing one is not worth failing the
// request over.
func (h *AccountHandler) notify(w http.ResponseWriter, r *http.Request, level, text string) {
	if err := h.flashes.Add(w, r, level, text); err != nil {
		h.logger.Warn("could not set flash message", slog.String("error", err.Error()))
	}
}
