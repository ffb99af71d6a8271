// Package documents manages the blobs referenced by application document slots:
// uploading replacements, reporting what they supersede, and cleaning up.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
	"resqnet/pkg/platform/sideeffect"
	"resqnet/pkg/requestcontext"
)

//go:generate mockgen -source=documents.go -destination=mocks/mocks.go -package=mocks BlobStore

// BlobStore is the object storage the manager writes to.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, url string) error
}

// Upload is a client-supplied file. ContentType may be empty.
type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// Request asks for one slot to be (possibly) replaced.
type Request struct {
	Folder      string
	ExistingURL string
	Upload      *Upload
}

// Replacement is the outcome for one slot. When Uploaded is false URL is the
// existing URL and nothing was written.
type Replacement struct {
	URL        string
	Superseded string
	Uploaded   bool
}

const defaultMaxSize int64 = 10 << 20

var errTooLarge = errors.New("document too large")

type Manager struct {
	blobs   BlobStore
	logger  *slog.Logger
	maxSize int64
	tempDir string
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMaxSize bounds a single document in bytes.
func WithMaxSize(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

// WithTempDir overrides the directory uploads are spooled to.
func WithTempDir(dir string) Option {
	return func(m *Manager) { m.tempDir = dir }
}

func New(blobs BlobStore, opts ...Option) *Manager {
	m := &Manager{blobs: blobs, logger: slog.Default(), maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Replace uploads the file for one slot. Without an upload it is a no-op that
// echoes existingURL. The spooled temp file is removed on every path.
func (m *Manager) Replace(ctx context.Context, existingURL string, upload *Upload, folder string, owner id.UserID) (Replacement, error) {
	if upload == nil {
		return Replacement{URL: existingURL}, nil
	}

	tmp, err := os.CreateTemp(m.tempDir, "resqnet-upload-*")
	if err != nil {
		return Replacement{}, dErrors.Wrap(err, dErrors.CodeUploadFailed, "failed to stage document")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := m.spool(tmp, upload.Content)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return Replacement{}, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("%s exceeds the maximum document size of %d bytes", upload.Filename, m.maxSize))
		}
		return Replacement{}, dErrors.Wrap(err, dErrors.CodeUploadFailed, "failed to stage document")
	}

	contentType := upload.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if contentType, err = sniff(tmp); err != nil {
			return Replacement{}, dErrors.Wrap(err, dErrors.CodeUploadFailed, "failed to stage document")
		}
	}

	key := ObjectKey(folder, owner, upload.Filename, requestcontext.Now(ctx).UnixMilli())
	url, err := m.blobs.Upload(ctx, key, contentType, tmp, size)
	if err != nil {
		return Replacement{}, dErrors.Wrap(err, dErrors.CodeUploadFailed, "failed to upload "+upload.Filename)
	}
	m.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"key", key,
		"size", size,
	)
	return Replacement{URL: url, Superseded: existingURL, Uploaded: true}, nil
}

func (m *Manager) spool(dst *os.File, src io.Reader) (int64, error) {
	n, err := io.Copy(dst, io.LimitReader(src, m.maxSize+1))
	if err != nil {
		return 0, err
	}
	if n > m.maxSize {
		return 0, errTooLarge
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return n, nil
}

func sniff(f *os.File) (string, error) {
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// ObjectKey builds {folder}/{owner}-{filename}-{unixMillis}. Path separators in
// the client filename are dropped.
func ObjectKey(folder string, owner id.UserID, filename string, unixMillis int64) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	return fmt.Sprintf("%s/%s-%s-%d", strings.TrimRight(folder, "/"), owner, name, unixMillis)
}

// ReplaceAll runs Replace for every request concurrently. Results keep request
// order. If any upload fails, blobs already written by this call are deleted and
// the first error is returned.
func (m *Manager) ReplaceAll(ctx context.Context, reqs []Request, owner id.UserID) ([]Replacement, error) {
	results := make([]Replacement, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			r, err := m.Replace(gctx, req.ExistingURL, req.Upload, req.Folder, owner)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.Discard(context.WithoutCancel(ctx), Uploaded(results)...)
		return nil, err
	}
	return results, nil
}

// Discard deletes blobs best-effort. Failures are logged and counted, never returned.
func (m *Manager) Discard(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		sideeffect.Attempt(ctx, m.logger, "document_discard", func(ctx context.Context) error {
			return m.blobs.Delete(ctx, url)
		}, "url", url)
	}
}

// Uploaded returns the URLs written by a ReplaceAll call.
func Uploaded(results []Replacement) []string {
	var out []string
	for _, r := range results {
		if r.Uploaded {
			out = append(out, r.URL)
		}
	}
	return out
}

// Superseded returns the URLs replaced by a ReplaceAll call.
func Superseded(results []Replacement) []string {
	var out []string
	for _, r := range results {
		if r.Uploaded && r.Superseded != "" {
			out = append(out, r.Superseded)
		}
	}
	return out
}
