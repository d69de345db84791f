package flash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requestWith builds a GET request carrying the cookies set on rr.
func requestWith(rr *httptest.ResponseRecorder, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestAddPeekClear(t *testing.T) {
	store := NewStore("test-session-secret-32-bytes!!!!", false)

	// Request 1 queues a message.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/images/create/", nil)
	require.NoError(t, store.Add(rr, req, LevelSuccess, "Image added successfully"))
	require.NotEmpty(t, rr.Result().Cookies())

	// Request 2 (the redirect target) reads it, then consumes it.
	req = requestWith(rr, "/images/detail/x/y/")
	messages := store.Peek(req)
	require.Len(t, messages, 1)
	assert.Equal(t, Message{Level: LevelSuccess, Text: "Image added successfully"}, messages[0])

	cleared := httptest.NewRecorder()
	require.NoError(t, store.Clear(cleared, req))

	// The rewritten cookie no longer carries the message.
	assert.Empty(t, store.Peek(requestWith(cleared, "/images/")))
}

func TestPeek_DoesNotConsume(t *testing.T) {
	store := NewStore("test-session-secret-32-bytes!!!!", false)

	rr := httptest.NewRecorder()
	require.NoError(t, store.Add(rr, httptest.NewRequest(http.MethodGet, "/", nil), LevelInfo, "still here"))

	req := requestWith(rr, "/images/")
	require.Len(t, store.Peek(req), 1)
	// A second look within the same request sees the same message.
	assert.Len(t, store.Peek(req), 1)
}

func TestClear_NoCookie(t *testing.T) {
	store := NewStore("test-session-secret-32-bytes!!!!", false)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, store.Peek(req))
	require.NoError(t, store.Clear(rr, req))
	assert.Empty(t, rr.Result().Cookies(), "nothing to clear, nothing written")
}

func TestPeek_ForeignSecret(t *testing.T) {
	writer := NewStore("first-session-secret-32-bytes!!!", false)
	reader := NewStore("other-session-secret-32-bytes!!!", false)

	rr := httptest.NewRecorder()
	require.NoError(t, writer.Add(rr, httptest.NewRequest(http.MethodGet, "/", nil), LevelInfo, "hi"))

	assert.Empty(t, reader.Peek(requestWith(rr, "/")))
}
