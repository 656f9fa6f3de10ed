// Package blob stores generated documents and serves them back.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("object not found")

var validName = regexp.MustCompile(`^[a-z0-9_-]+/[A-Za-z0-9._-]+$`)

// Bucket is an object store addressed by "<bucket>/<file>" names.
type Bucket interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	URL(name string) string
}

// FS keeps objects on an afero filesystem and serves them under publicURL.
type FS struct {
	fs        afero.Fs
	publicURL string
}

// NewFS stores objects below dir on the local disk.
func NewFS(dir, publicURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating object dir %s: %w", dir, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), publicURL), nil
}

func New(fs afero.Fs, publicURL string) *FS {
	return &FS{fs: fs, publicURL: strings.TrimRight(publicURL, "/")}
}

func check(name string) error {
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid object name %q", name)
	}
	return nil
}

// Put writes the object and returns its public URL. Readers never observe a
// partially written object.
func (b *FS) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := check(name); err != nil {
		return "", err
	}

	dir := path.Dir(name)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating bucket %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(b.fs, dir, path.Base(name)+".*")
	if err != nil {
		return "", fmt.Errorf("creating object %s: %w", name, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		b.fs.Remove(tmp.Name())
		return "", fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		b.fs.Remove(tmp.Name())
		return "", fmt.Errorf("closing object %s: %w", name, err)
	}
	if err := b.fs.Rename(tmp.Name(), name); err != nil {
		return "", fmt.Errorf("publishing object %s: %w", name, err)
	}
	return b.URL(name), nil
}

func (b *FS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := check(name); err != nil {
		return nil, err
	}

	f, err := b.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening object %s: %w", name, err)
	}
	return f, nil
}

func (b *FS) URL(name string) string {
	bucket, file := path.Split(name)
	return b.publicURL + "/" + bucket + url.PathEscape(file)
}

// HandleServe streams the object named by the bucket and file route
// variables.
func HandleServe(b Bucket) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "bucket") + "/" + web.Param(r, "file")
		if err := check(name); err != nil {
			return weberr.BadRequest(err)
		}

		rc, err := b.Open(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err, weberr.WithField("object", name))
			}
			return err
		}
		defer rc.Close()

		body, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("reading object %s: %w", name, err)
		}

		ct := "application/octet-stream"
		if strings.HasSuffix(name, ".pdf") {
			ct = "application/pdf"
		}
		return web.RespondBytes(w, ct, path.Base(name), body)
	}
}
