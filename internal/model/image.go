package model

import (
	"fmt"
	"net/url"
	"time"
)

// Image is a bookmarked image.
//
// The pair (ID, Slug) addresses an image in URLs; Slug is derived from the
// title when the image is created and never changes afterwards.
type Image struct {
	ID          string    `json:"id"          db:"id"`
	UserID      string    `json:"userId"      db:"user_id"`
	Title       string    `json:"title"       db:"title"`
	Slug        string    `json:"slug"        db:"slug"`
	URL         string    `json:"url"         db:"url"`
	File        string    `json:"file"        db:"file"` // path below the media dir, empty if not downloaded
	Description string    `json:"description" db:"description"`
	Recipe      string    `json:"recipe"      db:"recipe"` // source reference the image was bookmarked for
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	TotalLikes  int       `json:"totalLikes"  db:"-"`
}

// AbsoluteURL is the path of the image's detail page.
//
// Value receiver: templates range over []Image, and the elements they get
// are not addressable, so a pointer-receiver method would not be callable
// from {{.AbsoluteURL}}.
func (i Image) AbsoluteURL() string {
	return fmt.Sprintf("/images/detail/%s/%s/", url.PathEscape(i.ID), url.PathEscape(i.Slug))
}

// Src is the address the image should be displayed from: the downloaded
// copy when there is one, otherwise the original remote URL.
func (i Image) Src() string {
	if i.File != "" {
		return "/media/" + i.File
	}
	return i.URL
}
