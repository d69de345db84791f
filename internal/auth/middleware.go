package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// TokenCookie is the name of the cookie carrying the JWT.
const TokenCookie = "token"

// contextKey is unexported so no other package can collide with our keys.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue compares keys by type and value. With a plain string
// key "userID", any package could read or shadow the value. Only this
// package can construct a contextKey, so only it can set the user ID, and
// everyone else goes through UserIDFromContext.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth is a middleware that lets only logged-in users through.
//
// Anonymous page requests are redirected (303) to loginPath with the
// original URI in "next", so the login form can send the user back
// afterwards. Anonymous XHR/JSON requests get a 401 instead, since a
// redirect to an HTML form is useless to a script.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns one that wraps it:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
//
// RequireAuth returns without calling next when there is no valid token,
// so nothing behind it ever sees an anonymous request.
//
// COOKIE-BASED TOKEN STORAGE:
// The JWT travels in an HttpOnly cookie rather than localStorage or an
// Authorization header. Page loads carry it automatically, and script
// injected through a bad template cannot read it.
func RequireAuth(tokens *TokenService, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				if WantsJSON(r) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
					return
				}
				http.Redirect(w, r, LoginURL(loginPath, r.URL.RequestURI()), http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth resolves the user when a valid token is present but never
// blocks the request. Handlers check UserIDFromContext.
//
// Used on routes that behave differently for visitors and members: the
// detail page shows a like button only to members, and the like endpoint
// must report missing parameters before it reports a missing login. An
// expired or forged token is treated as no token at all.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil && userID != "" {
				r = r.WithContext(ContextWithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user's ID, or ("", false)
// for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextWithUserID marks ctx as belonging to userID. The middlewares use
// it; tests use it to fake a login.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// LoginURL builds the login redirect target. next is kept only when it is
// a local path, which stops the login form from becoming an open redirect.
//
//	LoginURL("/account/login/", "/images/create/?url=x")
//	  → "/account/login/?next=%2Fimages%2Fcreate%2F%3Furl%3Dx"
//	LoginURL("/account/login/", "https://evil.example/")
//	  → "/account/login/"
func LoginURL(loginPath, next string) string {
	if !IsLocalPath(next) {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(next)
}

// IsLocalPath reports whether p is a path on this site ("/x", not "//host/x").
// Browsers read "//host" and "/\host" as another origin.
func IsLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// WantsJSON reports whether the request was made by a script expecting JSON.
func WantsJSON(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// SetTokenCookie stores a freshly issued token in the browser.
//
// COOKIE FLAGS:
//   - HttpOnly: invisible to document.cookie
//   - SameSite=Lax: sent on top-level navigation, not on cross-site POSTs,
//     which is what stands in for CSRF tokens on the like and logout forms
//   - Secure: HTTPS only; on in production (COOKIE_SECURE)
//   - MaxAge matches TokenLifetime so the cookie and the JWT expire together
func SetTokenCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenLifetime.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie logs the browser out.
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
