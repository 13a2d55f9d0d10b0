package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/akabemail-hash/asutkosks/internal/logging"
)

// LocalPhotoStore writes visit photos under dir and serves them from prefix.
type LocalPhotoStore struct {
	dir    string
	prefix string
}

// NewLocalPhotoStore creates dir if needed.
func NewLocalPhotoStore(dir, prefix string) (*LocalPhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalPhotoStore{dir: dir, prefix: strings.TrimRight(prefix, "/")}, nil
}

// Dir is the directory served under the public prefix.
func (s *LocalPhotoStore) Dir() string { return s.dir }

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Save stores one uploaded file under a random name and returns its public URL.
func (s *LocalPhotoStore) Save(_ context.Context, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.NewString() + safeExt(fh.Filename)
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return s.prefix + "/" + name, nil
}

// Remove deletes stored photos by URL.  Unknown URLs are ignored.
func (s *LocalPhotoStore) Remove(ctx context.Context, urls []string) {
	for _, u := range urls {
		if !strings.HasPrefix(u, s.prefix+"/") {
			continue
		}
		name := path.Base(u)
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			logging.Ctx(ctx).Warn().Err(err).Str("photo", u).Msg("photo removal failed")
		}
	}
}
