package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Logical folders used by post attachments.
const (
	FolderImages = "posts/images"
	FolderFiles  = "posts/files"
)

var (
	// ErrInvalidPath is returned for paths that escape the storage root.
	ErrInvalidPath = errors.New("invalid attachment path")
)

// AttachmentStore persists and removes attachment blobs.
type AttachmentStore interface {
	// Store writes r under folder and returns the opaque relative path.
	Store(ctx context.Context, r io.Reader, filename, folder string) (string, error)
	// Delete removes the blob at path. A missing blob is not an error.
	Delete(ctx context.Context, path string) error
	// Exists reports whether a blob is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// LocalStore keeps blobs on the local filesystem below Root.
type LocalStore struct {
	Root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{Root: root}, nil
}

// Store saves the blob as <folder>/<uuid><ext>, keeping the uploaded extension.
func (s *LocalStore) Store(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	rel := path.Join(folder, uuid.NewString()+ext)
	dst, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", folder, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", rel, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	return rel, nil
}

// Delete removes the blob; already absent blobs are ignored.
func (s *LocalStore) Delete(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	return nil
}

// Exists reports whether rel is present below the root.
func (s *LocalStore) Exists(ctx context.Context, rel string) (bool, error) {
	p, err := s.resolve(rel)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStore) resolve(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" || strings.Contains(rel, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
