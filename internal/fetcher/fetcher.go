// Package fetcher downloads bookmarked images so the site keeps its own copy
// even if the original URL disappears.
//
// The service depends on the Fetcher interface, not on HTTPFetcher:
//
//	production: HTTPFetcher       (network + disk)
//	tests:      a fake            (canned Result or error)
//	nil:        no download at all; the image keeps only its remote URL
//
// Errors the visitor can act on are sentinels (ErrUnsupportedType,
// ErrTooLarge) so the service can word them for the form. Network
// failures are plain wrapped errors.
package fetcher

import (
	"context"
	"errors"
)

// ErrUnsupportedType is returned when the downloaded content is not an image
// type the site accepts.
var ErrUnsupportedType = errors.New("fetcher: unsupported content type")

// ErrTooLarge is returned when the remote file exceeds the size limit.
var ErrTooLarge = errors.New("fetcher: file too large")

// Result describes a stored download.
type Result struct {
	Path        string // relative to the media root, slash-separated
	ContentType string
	Size        int64
}

// Fetcher downloads rawURL and stores it under a name derived from name.
//
// name is a slug ("sunset-over-lisbon"); implementations add whatever
// they need to keep file names unique.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, name string) (*Result, error)
}
