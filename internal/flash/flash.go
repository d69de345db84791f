// Package flash carries one-time notices ("Image added successfully") from
// the request that produced them to the next page the browser renders.
// Messages live in a signed cookie session managed by gorilla/sessions.
package flash

import (
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "flash"

// Levels used by the templates to style a message.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelError   = "error"
)

// Message is a single notice.
type Message struct {
	Level string
	Text  string
}

func init() {
	// Session values are gob-encoded into the cookie.
	gob.Register(Message{})
}

// Store reads and writes flash messages.
//
// FLOW:
//
//	POST /images/create/ → Add("Image added successfully") + 303
//	GET  /images/detail/ → Peek shows it, Clear drops it from the cookie
//	GET  (reload)        → nothing left to show
//
// The cookie is signed, not encrypted: the text is readable in the
// browser, but a forged message fails the signature and is dropped.
type Store struct {
	sessions sessions.Store
}

// NewStore returns a cookie-backed Store. secret signs the cookie and must
// stay stable across restarts or pending messages are dropped.
func NewStore(secret string, secure bool) *Store {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{sessions: cs}
}

// Add queues a message for the next rendered page. It must be called
// before the response headers are written.
func (s *Store) Add(w http.ResponseWriter, r *http.Request, level, text string) error {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil && session == nil {
		return fmt.Errorf("flash: loading session: %w", err)
	}
	session.AddFlash(Message{Level: level, Text: text})
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("flash: saving session: %w", err)
	}
	return nil
}

// Peek returns the queued messages without consuming them. A missing or
// tampered cookie yields no messages.
//
// PEEK, THEN CLEAR:
// Reading and consuming are separate steps so a page that fails to render
// leaves its messages queued for the next attempt. The renderer calls Peek
// before executing the template and Clear only once the body is ready.
//
// Peek decodes the cookie with Store.New, which bypasses the per-request
// session registry; Get would hand Clear the same session object with the
// flashes already drained.
func (s *Store) Peek(r *http.Request) []Message {
	session, err := s.sessions.New(r, sessionName)
	if err != nil || session == nil {
		return nil
	}

	raw := session.Flashes()
	messages := make([]Message, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(Message); ok {
			messages = append(messages, m)
		}
	}
	return messages
}

// Clear consumes every queued message by rewriting the cookie. It writes
// a header, so call it before the response body. With nothing queued it
// writes nothing.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil || session == nil {
		return nil
	}
	if len(session.Flashes()) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("flash: clearing session: %w", err)
	}
	return nil
}
