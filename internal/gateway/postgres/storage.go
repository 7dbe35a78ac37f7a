package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UploadImage writes the blob under the media directory and returns the
// URL it will be served from.
func (g *Gateway) UploadImage(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	clean := filepath.Base(name)
	if clean == "." || clean == string(filepath.Separator) {
		return "", fmt.Errorf("upload image: invalid name %q", name)
	}

	if err := os.MkdirAll(g.mediaDir, 0o755); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.mediaDir, clean), content, 0o644); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	return strings.TrimSuffix(g.publicBaseURL, "/") + "/media/" + clean, nil
}

// RemoveImage deletes the blob, tolerating an already-missing file.
func (g *Gateway) RemoveImage(ctx context.Context, path string) error {
	clean := filepath.Base(path)
	err := os.Remove(filepath.Join(g.mediaDir, clean))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
