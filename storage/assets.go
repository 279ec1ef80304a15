package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxAssetBytes is the per-file upload ceiling.
const MaxAssetBytes int64 = 10 << 20

const (
	sniffLen       = 512
	createAttempts = 5
)

var allowedImageTypes = map[string]struct{}{
	"jpeg": {},
	"jpg":  {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// Upload is a single incoming file. Size is the declared length, or -1 when unknown.
type Upload struct {
	Body     io.Reader
	Filename string
	MIMEType string
	Size     int64
}

type RemovalOutcome int

const (
	RemovalSkipped RemovalOutcome = iota
	RemovalAbsent
	RemovalRemoved
	RemovalFailed
)

func (o RemovalOutcome) String() string {
	switch o {
	case RemovalAbsent:
		return "absent"
	case RemovalRemoved:
		return "removed"
	case RemovalFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Removal is the result of a best-effort delete. Err is set only for RemovalFailed.
type Removal struct {
	Outcome RemovalOutcome
	Path    string
	Err     error
}

// AssetStore writes uploaded images under a Root and maps logical references back to files.
type AssetStore struct {
	root     Root
	maxBytes int64
	now      func() time.Time
	suffix   func() int64
	logger   zerolog.Logger
}

type Option func(*AssetStore)

func WithClock(now func() time.Time) Option {
	return func(s *AssetStore) { s.now = now }
}

// WithSuffix replaces the random filename suffix source.
func WithSuffix(suffix func() int64) Option {
	return func(s *AssetStore) { s.suffix = suffix }
}

func WithMaxBytes(n int64) Option {
	return func(s *AssetStore) { s.maxBytes = n }
}

func NewAssetStore(root Root, opts ...Option) *AssetStore {
	s := &AssetStore{
		root:     root,
		maxBytes: MaxAssetBytes,
		now:      time.Now,
		suffix:   func() int64 { return rand.Int64N(1_000_000_000) },
		logger:   log.With().Str("component", "assetStore").Str("root", root.Dir).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AssetStore) Root() Root {
	return s.root
}

// Accept validates u, writes it under the root and returns its logical reference ("/uploads/<name>").
// Nothing is left on disk when an error is returned.
func (s *AssetStore) Accept(ctx context.Context, u Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if u.Body == nil {
		return "", errs.NewMissingRequiredFieldError("image")
	}
	if u.Size > s.maxBytes {
		assetsRejected.WithLabelValues("too_large").Inc()
		return "", errs.NewAssetTooLargeError(s.maxBytes)
	}
	ext, err := s.validateType(u)
	if err != nil {
		assetsRejected.WithLabelValues("unsupported_type").Inc()
		return "", err
	}

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Body, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", errs.NewAssetWriteError(err)
	}
	header = header[:n]
	s.observeContent(u, header)

	f, name, err := s.create(ext)
	if err != nil {
		return "", errs.NewAssetWriteError(err)
	}
	path := f.Name()

	body := io.MultiReader(bytes.NewReader(header), &ctxReader{ctx: ctx, r: u.Body})
	written, copyErr := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()

	switch {
	case written > s.maxBytes:
		s.discard(path)
		assetsRejected.WithLabelValues("too_large").Inc()
		return "", errs.NewAssetTooLargeError(s.maxBytes)
	case copyErr != nil:
		s.discard(path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errs.NewAssetWriteError(copyErr)
	case closeErr != nil:
		s.discard(path)
		return "", errs.NewAssetWriteError(closeErr)
	}

	assetsAccepted.Inc()
	assetBytesWritten.Add(float64(written))
	s.logger.Debug().Str("file", name).Int64("bytes", written).Msg("asset stored")
	return models.UploadsPrefix + name, nil
}

// validateType checks the declared MIME type and the extension and returns the extension to keep.
func (s *AssetStore) validateType(u Upload) (string, error) {
	ext := filepath.Ext(u.Filename)
	if _, ok := allowedImageTypes[strings.TrimPrefix(strings.ToLower(ext), ".")]; !ok {
		return "", errs.NewUnsupportedAssetTypeError(u.Filename, u.MIMEType)
	}

	mediaType, _, err := mime.ParseMediaType(u.MIMEType)
	if err != nil {
		return "", errs.NewUnsupportedAssetTypeError(u.Filename, u.MIMEType)
	}
	major, minor, ok := strings.Cut(mediaType, "/")
	if !ok || major != "image" {
		return "", errs.NewUnsupportedAssetTypeError(u.Filename, u.MIMEType)
	}
	if _, ok := allowedImageTypes[minor]; !ok {
		return "", errs.NewUnsupportedAssetTypeError(u.Filename, u.MIMEType)
	}
	return ext, nil
}

// observeContent flags uploads whose bytes do not look like the declared image type.
// The declared type stays authoritative.
func (s *AssetStore) observeContent(u Upload, header []byte) {
	if len(header) == 0 {
		return
	}
	detected := mimetype.Detect(header)
	declared, _, _ := mime.ParseMediaType(u.MIMEType)
	if detected.Is(declared) || (declared == "image/jpg" && detected.Is("image/jpeg")) {
		return
	}
	assetContentMismatch.Inc()
	s.logger.Warn().
		Str("filename", u.Filename).
		Str("declared", declared).
		Str("detected", detected.String()).
		Msg("uploaded content does not match declared type")
}

// create opens a new file with a fresh name, retrying when the name is already taken.
func (s *AssetStore) create(ext string) (*os.File, string, error) {
	var lastErr error
	for range createAttempts {
		name := fmt.Sprintf("%d-%d%s", s.now().UnixMilli(), s.suffix(), ext)
		f, err := os.OpenFile(filepath.Join(s.root.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("no free asset name after %d attempts: %w", createAttempts, lastErr)
}

func (s *AssetStore) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to remove partial upload")
	}
}

// Resolve maps a logical reference to an absolute path inside the root, or "" when ref names nothing.
// Only the final path element of ref is used.
func (s *AssetStore) Resolve(ref string) string {
	name := assetName(ref)
	if name == "" {
		return ""
	}
	return filepath.Join(s.root.Dir, name)
}

func assetName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base := filepath.Base(filepath.FromSlash(ref))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// Remove deletes the file behind ref. It never panics and never returns an error directly;
// callers inspect the Removal.
func (s *AssetStore) Remove(ref string) Removal {
	path := s.Resolve(ref)
	if path == "" {
		return s.record(Removal{Outcome: RemovalSkipped})
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		return s.record(Removal{Outcome: RemovalRemoved, Path: path})
	case os.IsNotExist(err):
		return s.record(Removal{Outcome: RemovalAbsent, Path: path})
	default:
		return s.record(Removal{Outcome: RemovalFailed, Path: path, Err: err})
	}
}

func (s *AssetStore) record(r Removal) Removal {
	assetRemovals.WithLabelValues(r.Outcome.String()).Inc()
	return r
}

// Handler serves stored assets at models.UploadsPrefix + <name>.
func (s *AssetStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := s.Resolve(strings.TrimPrefix(r.URL.Path, models.UploadsPrefix))
		if path == "" {
			http.NotFound(w, r)
			return
		}
		if rel, err := filepath.Rel(s.root.Dir, path); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			http.NotFound(w, r)
			return
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	})
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
