package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "speckle-inspector/internal/errors"
)

// Source opens stored captures by location
type Source interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// ReadAll loads a whole capture into memory, refusing anything above maxBytes
// when maxBytes is positive
func ReadAll(ctx context.Context, src Source, location string, maxBytes int64) ([]byte, error) {
	rc, err := src.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := io.Reader(rc)
	if maxBytes > 0 {
		r = io.LimitReader(rc, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to read %s", location), err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s exceeds %d bytes", location, maxBytes), nil)
	}
	return data, nil
}

// LocalSource reads captures from the file system. Relative locations are
// resolved against the base directory and may not leave it. Absolute
// locations are refused unless enabled with WithAbsolutePaths.
type LocalSource struct {
	baseDir       string
	allowAbsolute bool
}

// NewLocalSource creates a file system source confined to baseDir
func NewLocalSource(baseDir string) *LocalSource {
	return &LocalSource{baseDir: baseDir}
}

// WithAbsolutePaths returns a copy of the source that also opens absolute
// locations. Only the CLI, run by the owner of the files, enables it.
func (s *LocalSource) WithAbsolutePaths() *LocalSource {
	cp := *s
	cp.allowAbsolute = true
	return &cp
}

// Open opens the file at location
func (s *LocalSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("open cancelled", err)
	}
	path, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("image %s not found", location), err)
		}
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to open %s", location), err)
	}
	return f, nil
}

// Exists reports whether a location can be opened
func (s *LocalSource) Exists(location string) bool {
	path, err := s.resolve(location)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *LocalSource) resolve(location string) (string, error) {
	if filepath.IsAbs(location) {
		if !s.allowAbsolute {
			return "", apperrors.NewValidationError(fmt.Sprintf("absolute location %s not allowed", location), nil)
		}
		return filepath.Clean(location), nil
	}
	joined := filepath.Join(s.baseDir, location)
	rel, err := filepath.Rel(s.baseDir, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.NewValidationError(fmt.Sprintf("location %s escapes the image directory", location), err)
	}
	return joined, nil
}
