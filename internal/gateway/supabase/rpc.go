package supabase

import (
	"context"
	"fmt"
	"net/http"
)

// ToggleLike calls the backend toggle_like function. The acting user is
// taken from the request's bearer token server-side; userID is accepted
// for interface parity and ignored here.
func (c *Client) ToggleLike(ctx context.Context, userID, businessID string) error {
	body := map[string]any{"business_id_to_toggle": businessID}
	if err := c.doJSON(ctx, http.MethodPost, "/rest/v1/rpc/toggle_like", body, nil, nil); err != nil {
		return fmt.Errorf("toggle like: %w", err)
	}
	return nil
}

// IncrementLike calls the anonymous increment_like function.
func (c *Client) IncrementLike(ctx context.Context, businessID string) error {
	body := map[string]any{"business_id_to_update": businessID}
	if err := c.doJSON(ctx, http.MethodPost, "/rest/v1/rpc/increment_like", body, nil, nil); err != nil {
		return fmt.Errorf("increment like: %w", err)
	}
	return nil
}
