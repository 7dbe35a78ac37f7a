package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ubika-app/directory-core/internal/gateway"
)

// UploadImage stores the blob in the business-images bucket and returns
// its public URL.
func (c *Client) UploadImage(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	path := "/storage/v1/object/" + storageBucket + "/" + name

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	c.setHeaders(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", gateway.Unreachable(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("upload image: %w", classifyResponse(resp))
	}
	io.Copy(io.Discard, resp.Body)

	return c.PublicImageURL(name), nil
}

// RemoveImage deletes the object at path within the bucket.
func (c *Client) RemoveImage(ctx context.Context, path string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/storage/v1/object/"+storageBucket+"/"+path, nil, nil, nil); err != nil {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// PublicImageURL returns the bucket's public URL for an object name.
func (c *Client) PublicImageURL(name string) string {
	return c.baseURL + "/storage/v1/object/public/" + storageBucket + "/" + name
}
