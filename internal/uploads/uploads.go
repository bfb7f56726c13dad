// Package uploads stores receipt images on disk until OCR has run and
// the receipt is confirmed. Files are short-lived and swept by age.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// MaxFileSize is the upload size limit.
const MaxFileSize = 5 * 1024 * 1024

var (
	ErrFileTooLarge    = errors.New("file size exceeds 5MB limit")
	ErrUnsupportedType = errors.New("unsupported file type (JPG and PNG only)")
	ErrNotFound        = errors.New("upload not found")
)

// Upload identifies a stored receipt image.
type Upload struct {
	ID   string
	Path string
}

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save validates and stores the file content under a UUID-based name.
// The UUID doubles as the receipt id for the rest of the flow.
func (s *Store) Save(ctx context.Context, content []byte, originalFilename string) (Upload, error) {
	if len(content) > MaxFileSize {
		return Upload{}, ErrFileTooLarge
	}
	if len(content) == 0 {
		return Upload{}, ErrUnsupportedType
	}

	// Sniff the real content type; the filename extension is advisory.
	ext, err := imageExtension(content)
	if err != nil {
		slog.WarnContext(ctx, "Rejected upload",
			"filename", originalFilename, "error", err)
		return Upload{}, err
	}

	id := uuid.NewString()
	name := fmt.Sprintf("%s_%d%s", id, time.Now().UTC().Unix(), ext)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, content, 0644); err != nil {
		return Upload{}, fmt.Errorf("write upload: %w", err)
	}

	slog.InfoContext(ctx, "Upload stored",
		"id", id, "path", path, "size", len(content))
	return Upload{ID: id, Path: path}, nil
}

// Find locates the stored file for an upload id.
func (s *Store) Find(ctx context.Context, id string) (Upload, error) {
	// The id is a UUID we generated; anything else never matches a file.
	if _, err := uuid.Parse(id); err != nil {
		return Upload{}, ErrNotFound
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, id+"_*"))
	if err != nil || len(matches) == 0 {
		return Upload{}, ErrNotFound
	}
	return Upload{ID: id, Path: matches[0]}, nil
}

// Delete removes a stored upload. Deleting a missing upload is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	up, err := s.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(up.Path); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	slog.InfoContext(ctx, "Upload deleted", "id", id, "path", up.Path)
	return nil
}

// CleanupOlderThan deletes uploads whose files are older than maxAge and
// returns how many were removed.
func (s *Store) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == ".gitkeep" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.WarnContext(ctx, "Failed to delete old upload", "path", path, "error", err)
			continue
		}
		deleted++
	}

	slog.InfoContext(ctx, "Upload cleanup completed", "deleted", deleted)
	return deleted, nil
}

func imageExtension(content []byte) (string, error) {
	switch http.DetectContentType(content) {
	case "image/jpeg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	default:
		return "", ErrUnsupportedType
	}
}
