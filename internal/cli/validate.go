package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/cert-teacher/internal/imagetype"
	"github.com/fpang/cert-teacher/internal/s3util"
)

// ErrNotImage is returned for files the pipeline cannot read.
var ErrNotImage = errors.New("not a supported image (png, jpg, jpeg, gif, webp)")

// ValidateImageFile checks that path is a regular image file small enough
// for the pipeline, and returns its absolute path and media type.
func ValidateImageFile(path string) (string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("file not found: %s", path)
		}
		return "", "", fmt.Errorf("access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%s is a directory", path)
	}
	mediaType, ok := imagetype.ForName(path)
	if !ok {
		return "", "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNotImage)
	}
	if info.Size() > s3util.MaxObjectBytes {
		return "", "", fmt.Errorf("%s: %w (%d bytes, limit %d)", filepath.Base(path), s3util.ErrObjectTooLarge, info.Size(), s3util.MaxObjectBytes)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, mediaType, nil
}
