// Package storage writes resolved payloads to their destination.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Writer stores text at a path.
type Writer interface {
	WriteText(ctx context.Context, path, content string) error
}

// WriteError represents a failure to store a file.
type WriteError struct {
	Path    string
	Message string
	Cause   error
}

func (e *WriteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("write error for %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("write error for %s: %s", e.Path, e.Message)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// FileWriter writes to the local filesystem.
type FileWriter struct{}

// NewFileWriter creates dir if it does not exist and returns a writer for it.
func NewFileWriter(dir string) (*FileWriter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &WriteError{Path: dir, Message: "failed to create storage directory", Cause: err}
	}
	return &FileWriter{}, nil
}

// WriteText writes content to path through a temporary file in the same
// directory, so the destination either holds the old file or the complete
// new one.
func (w *FileWriter) WriteText(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Message: "canceled before write", Cause: err}
	}

	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return &WriteError{Path: path, Message: "failed to write temporary file", Cause: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Path: path, Message: "failed to move file into place", Cause: err}
	}
	return nil
}

// New returns the writer for a storage location. Locations starting with
// "s3://" are written with an S3Writer configured from s3; anything else is a
// local directory.
func New(ctx context.Context, location string, s3 *S3Config) (Writer, error) {
	if strings.HasPrefix(location, s3Scheme) {
		bucket, _, err := ParseS3Location(location)
		if err != nil {
			return nil, err
		}
		if s3 == nil {
			return nil, &WriteError{Path: location, Message: "S3 storage requires S3 configuration"}
		}
		return NewS3Writer(ctx, bucket, *s3)
	}
	return NewFileWriter(location)
}
