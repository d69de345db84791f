package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bookmarks/internal/apperror"
	"github.com/sakif/bookmarks/internal/auth"
	"github.com/sakif/bookmarks/internal/flash"
	"github.com/sakif/bookmarks/internal/pagination"
	"github.com/sakif/bookmarks/internal/service"
)

const (
	sectionImages = "images"

	// rankingSize is how many images the ranking page shows.
	rankingSize = 10
)

// ImageHandler serves the image pages and the like toggle.
//
// Each method is thin: read the request, call ImageService, pick a
// template or a JSON body. Rules such as "a missing id is reported
// before a missing login" live in the service so the handler tests and
// the service tests agree on them.
type ImageHandler struct {
	images  *service.ImageService
	render  *Renderer
	flashes *flash.Store
	logger  *slog.Logger
}

func NewImageHandler(images *service.ImageService, render *Renderer, flashes *flash.Store, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images:  images,
		render:  render,
		flashes: flashes,
		logger:  logger,
	}
}

// imageFormFrom reads the form fields from a query string (bookmarklet
// pre-fill) or a POST body. Both use the same names.
func imageFormFrom(values url.Values) service.ImageForm {
	return service.ImageForm{
		Title:       values.Get("title"),
		URL:         values.Get("url"),
		Description: values.Get("description"),
		Recipe:      values.Get("recipe"),
	}
}

// HandleCreate shows the bookmark form and stores submitted images.
//
// HTTP: GET  /images/create/?title=...&url=...   (bookmarklet pre-fill)
//
//	POST /images/create/
//
// Auth: required
//
// POST/REDIRECT/GET:
// A successful POST answers 303 to the new image's detail page instead of
// rendering it. Reloading the detail page then repeats a GET, not the
// POST, so a refresh cannot bookmark the image twice. The "Image added
// successfully" notice rides along in the flash cookie.
//
// An invalid POST re-renders the form with 200 and the submitted values,
// each error shown under its field.
func (h *ImageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.renderCreate(w, r, imageFormFrom(r.URL.Query()), nil)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.render.Error(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	form := imageFormFrom(r.PostForm)
	userID, _ := auth.UserIDFromContext(r.Context())

	image, err := h.images.Create(r.Context(), userID, form)
	if err != nil {
		var fe service.FormErrors
		if errors.As(err, &fe) {
			h.renderCreate(w, r, form, fe)
			return
		}
		h.fail(w, r, err)
		return
	}

	if err := h.flashes.Add(w, r, flash.LevelSuccess, "Image added successfully"); err != nil {
		h.logger.Warn("could not set flash message", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, image.AbsoluteURL(), http.StatusSeeOther)
}

// renderCreate shows the bookmark form. errs is nil on a GET.
func (h *ImageHandler) renderCreate(w http.ResponseWriter, r *http.Request, form service.ImageForm, errs service.FormErrors) {
	if errs == nil {
		errs = service.FormErrors{}
	}
	h.render.Page(w, r, http.StatusOK, pageImageCreate, sectionImages, map[string]any{
		"Form":   form,
		"Errors": errs,
	})
}

// HandleDetail shows one image.
//
// HTTP: GET /images/detail/{id}/{slug}/
//
// Each render counts one view. A Redis failure is logged and the page
// still renders with whatever count came back (0); views are a nicety,
// the image is the point.
func (h *ImageHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slug := chi.URLParam(r, "slug")

	detail, err := h.images.Get(r.Context(), id, slug)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	views, err := h.images.RecordView(r.Context(), detail.Image.ID)
	if err != nil {
		h.logger.Warn("recording image view",
			slog.String("imageID", detail.Image.ID),
			slog.String("error", err.Error()),
		)
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	h.render.Page(w, r, http.StatusOK, pageImageDetail, sectionImages, map[string]any{
		"Image":          detail.Image,
		"LikedBy":        detail.LikedBy,
		"Liked":          detail.LikedByUser(userID),
		"Views":          views,
		"RankingEnabled": h.images.RankingEnabled(),
	})
}

// HandleLike adds or removes the caller's like.
//
// HTTP: POST /images/like/   form: id, action ("like" or anything else to unlike)
//
// The response is always {"status": "ok"} or {"status": "error"}. Bad
// parameters and unknown images answer 200; only a missing login is 401.
//
// RESPONSE FORMAT:
//
//	200 {"status":"ok"}      like stored or removed
//	200 {"status":"error"}   missing id/action, unknown image, storage error
//	401 {"status":"error"}   no login (checked after the parameters)
//
// The script only flips the button on "ok", so the two error shapes need
// no further detail.
func (h *ImageHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, statusError)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	err := h.images.Like(r.Context(), userID, r.PostForm.Get("id"), r.PostForm.Get("action"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusOK)
	case errors.Is(err, apperror.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, statusError)
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrNotFound):
		writeJSON(w, http.StatusOK, statusError)
	default:
		h.logger.Error("like toggle failed",
			slog.String("imageID", r.PostForm.Get("id")),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, statusError)
	}
}

// HandleList shows all images, eight per page.
//
// HTTP: GET /images/?page=N[&images_only=1]
// Auth: required
//
// With images_only set only the thumbnails are rendered, for the infinite
// scroll script; past the last page it gets an empty body and stops.
//
//	GET /images/?page=2               full page 2 (layout + thumbnails)
//	GET /images/?page=2&images_only=1 thumbnails only, appended by the script
//	GET /images/?page=99&images_only=1  200 with an empty body
func (h *ImageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	imagesOnly := q.Get("images_only") != ""

	page, err := h.images.List(r.Context(), q.Get("page"), imagesOnly)
	if errors.Is(err, pagination.ErrEmptyPage) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := map[string]any{"Images": page}
	if imagesOnly {
		h.render.Fragment(w, data)
		return
	}
	h.render.Page(w, r, http.StatusOK, pageImageList, sectionImages, data)
}

// HandleBookmarked lists the images the caller liked. Anonymous visitors
// see an empty list.
//
// HTTP: GET /images/bookmarked/
//
// Mounted under OptionalAuth, not RequireAuth: the page itself is public,
// it is just empty for a visitor who is not signed in.
func (h *ImageHandler) HandleBookmarked(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	images, err := h.images.Liked(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render.Page(w, r, http.StatusOK, pageImageBookmarked, sectionImages, map[string]any{
		"BookmarkedImages": images,
	})
}

// HandleRanking lists the most viewed images with their view totals.
//
// Without Redis the page still renders and says tracking is off, rather
// than 404ing a link that is in the nav bar.
//
// HTTP: GET /images/ranking/
// Auth: required
func (h *ImageHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	images, err := h.images.Ranking(r.Context(), rankingSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render.Page(w, r, http.StatusOK, pageImageRanking, sectionImages, map[string]any{
		"MostViewed": images,
		"Enabled":    h.images.RankingEnabled(),
	})
}

// fail renders the error page for err, logging anything that is not a
// known domain error. Known errors (not found, validation) are the
// visitor's doing and would only add noise at Error level.
func (h *ImageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	h.render.Error(w, r, status, publicMessage(err))
}
