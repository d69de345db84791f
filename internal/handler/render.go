// Package handler contains the HTTP handlers of the bookmarks site.
//
// Handlers parse the request, call a service, and either render an HTML
// template or write JSON. They hold no business rules.
//
// TEMPLATE LAYOUT (web/templates):
//
//	base.html                 {{define "base"}}: <head>, nav, flash messages,
//	                          then {{block "content"}}
//	images/list_images.html   {{define "list_images"}}: thumbnails only
//	images/*.html             one page each, defining "title" and "content"
//	account/*.html            login and register
//	error.html                any non-2xx page
//
// WHY ONE TEMPLATE SET PER PAGE?
// Every page defines a block named "content". Parsed into a single set,
// the last file parsed would win and every page would render the same
// content. Parsing base + partial + page together, once per page, gives
// each page its own "content".
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sakif/bookmarks/internal/auth"
	"github.com/sakif/bookmarks/internal/flash"
)

// Page templates, relative to the template directory.
const (
	pageImageCreate     = "images/create.html"
	pageImageDetail     = "images/detail.html"
	pageImageList       = "images/list.html"
	pageImageBookmarked = "images/bookmarked.html"
	pageImageRanking    = "images/ranking.html"
	pageLogin           = "account/login.html"
	pageRegister        = "account/register.html"
	pageError           = "error.html"

	// fragmentImages renders just the thumbnails of one list page.
	fragmentImages = "images/list_images.html"
)

var pages = []string{
	pageImageCreate,
	pageImageDetail,
	pageImageList,
	pageImageBookmarked,
	pageImageRanking,
	pageLogin,
	pageRegister,
	pageError,
}

// Renderer executes the site's HTML templates.
//
// Every page is parsed once at startup together with base.html, which
// defines the layout, and the list_images fragment, which pages may embed.
type Renderer struct {
	pages    map[string]*template.Template
	fragment *template.Template
	flashes  *flash.Store
	logger   *slog.Logger
}

// NewRenderer parses all templates below templateDir.
//
// A syntax error in any template fails here, at startup, rather than on
// the first request that happens to render that page.
func NewRenderer(templateDir string, flashes *flash.Store, logger *slog.Logger) (*Renderer, error) {
	base := filepath.Join(templateDir, "base.html")
	partial := filepath.Join(templateDir, filepath.FromSlash(fragmentImages))

	r := &Renderer{
		pages:   make(map[string]*template.Template, len(pages)),
		flashes: flashes,
		logger:  logger,
	}

	for _, name := range pages {
		tmpl, err := template.ParseFiles(base, partial, filepath.Join(templateDir, filepath.FromSlash(name)))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}

	fragment, err := template.ParseFiles(partial)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", fragmentImages, err)
	}
	r.fragment = fragment

	return r, nil
}

// Page renders a full page. data is extended with the fields the layout
// needs: the current user, pending flash messages and the active section.
//
// FLASH LIFECYCLE:
// Messages are read with Peek and consumed with Clear only after the
// template rendered into the buffer. A template error answers 500 and
// leaves the messages queued, so "Image added successfully" survives to
// the next page that renders. Clear sets a cookie, so it must run before
// WriteHeader.
func (r *Renderer) Page(w http.ResponseWriter, req *http.Request, status int, name, section string, data map[string]any) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("unknown template", slog.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	userID, authenticated := auth.UserIDFromContext(req.Context())
	data["UserID"] = userID
	data["Authenticated"] = authenticated
	data["Section"] = section
	data["Messages"] = r.flashes.Peek(req)

	buf, ok := r.execute(w, tmpl, "base", data)
	if !ok {
		return
	}
	if err := r.flashes.Clear(w, req); err != nil {
		r.logger.Warn("clearing flash messages", slog.String("error", err.Error()))
	}
	writeHTML(w, status, buf)
}

// Fragment renders the list_images fragment on its own.
func (r *Renderer) Fragment(w http.ResponseWriter, data map[string]any) {
	if buf, ok := r.execute(w, r.fragment, "list_images", data); ok {
		writeHTML(w, http.StatusOK, buf)
	}
}

// Error renders the HTML error page.
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, status int, message string) {
	r.Page(w, req, status, pageError, "", map[string]any{
		"Status":  status,
		"Title":   http.StatusText(status),
		"Message": message,
	})
}

// execute renders a template into a buffer.
//
// WHY BUFFER?
// ExecuteTemplate streams into its writer. Once the first byte reaches the
// ResponseWriter the status is fixed at 200, so an error halfway through
// (a nil field, a failing method) would leave the browser half a page with
// a success code. Rendering into memory first means a failure still turns
// into a clean 500, and the caller gets to set headers after it knows the
// render worked.
//
// On failure execute has already answered 500 and reports ok == false.
func (r *Renderer) execute(w http.ResponseWriter, tmpl *template.Template, name string, data any) (*bytes.Buffer, bool) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return &buf, true
}

func writeHTML(w http.ResponseWriter, status int, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
