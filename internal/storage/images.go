// Package storage keeps uploaded product images on local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidFileType = errors.New("invalid file type")

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
}

// AllowedExtension reports whether name ends in an accepted image extension.
// The comparison ignores case.
func AllowedExtension(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

type ImageStore struct {
	Dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{Dir: dir}, nil
}

// Save writes r under a fresh uuid keeping the extension of original, and
// returns the stored file name.
func (s *ImageStore) Save(original string, r io.Reader) (string, error) {
	if !AllowedExtension(original) {
		return "", ErrInvalidFileType
	}

	name := uuid.NewString() + filepath.Ext(original)
	path := filepath.Join(s.Dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close image: %w", err)
	}
	return name, nil
}

// Remove deletes a stored image. A missing file is not an error.
func (s *ImageStore) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
