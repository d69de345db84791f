// Package pagination splits an ordered collection into numbered pages of a
// fixed size.
//
// Page numbers are 1-based and come from untrusted query strings, so
// Validate distinguishes two failure modes callers recover from differently:
//
//   - ErrPageNotAnInteger: the raw value is not a number (serve page 1)
//   - ErrEmptyPage:        the number is outside 1..NumPages (serve the last
//     page, or nothing at all for incremental loaders)
//
// Page 1 is always valid, even for an empty collection.
package pagination

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrPageNotAnInteger = errors.New("pagination: page number is not an integer")
	ErrEmptyPage        = errors.New("pagination: page contains no results")
)

// Paginator knows the size of a collection and how many items fit on a page.
type Paginator struct {
	count   int
	perPage int
}

// New returns a Paginator over count items. perPage below 1 is treated as 1.
func New(count, perPage int) *Paginator {
	if perPage < 1 {
		perPage = 1
	}
	if count < 0 {
		count = 0
	}
	return &Paginator{count: count, perPage: perPage}
}

// Count is the total number of items.
func (p *Paginator) Count() int { return p.count }

// NumPages is the number of pages, never less than 1.
func (p *Paginator) NumPages() int {
	if p.count == 0 {
		return 1
	}
	return (p.count + p.perPage - 1) / p.perPage
}

// Validate parses a raw page number and checks it is in range.
func (p *Paginator) Validate(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrPageNotAnInteger
	}
	return n, p.check(n)
}

func (p *Paginator) check(n int) error {
	if n < 1 {
		return ErrEmptyPage
	}
	if n > p.NumPages() {
		return ErrEmptyPage
	}
	return nil
}

// Bounds returns the offset and limit of page n. n must be valid.
//
// For 9 items at 8 per page:
//
//	Bounds(1) → offset 0, limit 8
//	Bounds(2) → offset 8, limit 1
//
// The last page's limit is trimmed to what is left; an empty collection
// gives limit 0 for page 1.
func (p *Paginator) Bounds(n int) (offset, limit int) {
	offset = (n - 1) * p.perPage
	limit = p.perPage
	if offset+limit > p.count {
		limit = p.count - offset
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit
}

// Page is one page of items together with the navigation state templates need.
type Page[T any] struct {
	Items    []T
	Number   int
	NumPages int
	Count    int
}

// NewPage builds page n holding items.
func NewPage[T any](p *Paginator, n int, items []T) *Page[T] {
	return &Page[T]{
		Items:    items,
		Number:   n,
		NumPages: p.NumPages(),
		Count:    p.Count(),
	}
}

// The navigation helpers below are for templates:
//
//	{{if .Images.HasPrevious}}<a href="?page={{.Images.PreviousNumber}}">{{end}}
//	Page {{.Images.Number}} of {{.Images.NumPages}}
//	{{if .Images.HasNext}}<a href="?page={{.Images.NextNumber}}">{{end}}

func (pg *Page[T]) HasNext() bool     { return pg.Number < pg.NumPages }
func (pg *Page[T]) HasPrevious() bool { return pg.Number > 1 }
func (pg *Page[T]) NextNumber() int   { return pg.Number + 1 }
func (pg *Page[T]) PreviousNumber() int {
	return pg.Number - 1
}
