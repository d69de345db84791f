package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/xid"
)

// Config controls downloads.
type Config struct {
	MediaDir string        // root directory files are written below
	Timeout  time.Duration // whole-request deadline
	MaxBytes int64         // largest accepted file
}

// DefaultConfig returns production defaults for the given media directory.
func DefaultConfig(mediaDir string) Config {
	return Config{
		MediaDir: mediaDir,
		Timeout:  15 * time.Second,
		MaxBytes: 10 << 20, // 10 MiB
	}
}

// allowed maps accepted MIME types to the extension files are saved with.
var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// HTTPFetcher downloads over HTTP(S) and writes into
// <MediaDir>/images/YYYY/MM/DD/<name>-<xid><ext>.
//
// STORAGE LAYOUT:
//
//	data/media/images/2026/10/18/sunset-over-lisbon-cs9k2f1o3d7u8l2qfa0g.jpg
//	           └──────── rel ────────────────────────────────────────────┘
//
// Only rel is stored on the image row; the server mounts MediaDir at
// /media/, so model.Image.Src is "/media/" + rel. Date directories keep
// any one directory from growing without bound.
type HTTPFetcher struct {
	client *http.Client
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewHTTPFetcher creates an HTTPFetcher. The media directory is created on
// first use, not here.
func NewHTTPFetcher(cfg Config, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig("").Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig("").MaxBytes
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Fetch downloads rawURL, checks the bytes really are a JPEG or PNG, and
// stores the file. The extension comes from the sniffed content, not from
// the URL, so a mislabelled file is stored under its true type.
//
// WHY SNIFF?
// The form already checked that the URL ends in .jpg or .png, but the URL
// is only a claim. A server can answer photo.jpg with an HTML error page
// or anything else. mimetype reads the magic bytes (FF D8 FF for JPEG,
// 89 50 4E 47 for PNG) and the Content-Type header is ignored.
//
// The http.Client timeout bounds the whole download, body included, and
// MaxBytes bounds memory: the body is read into RAM before sniffing.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, name string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: building request: %w", err)
	}
	req.Header.Set("User-Agent", "bookmarks-fetcher/1.0")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetcher: %s returned status %d", rawURL, resp.StatusCode)
	}

	// Read one byte past the limit to tell "exactly MaxBytes" from "more".
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetcher: reading body of %s: %w", rawURL, err)
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowed[mtype.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	rel := path.Join("images", f.now().UTC().Format("2006/01/02"), fileName(name, ext))
	if err := f.write(rel, data); err != nil {
		return nil, err
	}

	f.logger.Info("image downloaded",
		slog.String("url", rawURL),
		slog.String("path", rel),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)),
	)

	return &Result{Path: rel, ContentType: mtype.String(), Size: int64(len(data))}, nil
}

// write stores data atomically: a crash never leaves a half-written file
// under the final name.
//
// The temp file lives in the destination directory so os.Rename stays on
// one filesystem, where it is atomic. The deferred Remove is a no-op once
// the rename succeeded.
func (f *HTTPFetcher) write(rel string, data []byte) error {
	dst := filepath.Join(f.config.MediaDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("fetcher: creating media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return fmt.Errorf("fetcher: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("fetcher: writing %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fetcher: closing %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("fetcher: moving %s into place: %w", rel, err)
	}
	return nil
}

// fileName keeps names unique when two images share a slug.
func fileName(name, ext string) string {
	if name == "" {
		name = "image"
	}
	return name + "-" + xid.New().String() + ext
}
