// Package supabase implements the remote data gateway against a hosted
// Supabase-style backend: GoTrue auth, PostgREST rows/RPC, and the
// storage object API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ubika-app/directory-core/internal/gateway"
)

const (
	// Client-level ceilings; per-call budgets are enforced above this
	// layer by the timeout wrapper.
	defaultTimeout = 20 * time.Second
	uploadTimeout  = 60 * time.Second

	storageBucket = "business-images"
)

// Client talks to the hosted backend over HTTP and owns the process's
// auth session state, fanning out auth-state-change events to
// subscribers.
type Client struct {
	baseURL string
	anonKey string

	httpClient   *http.Client
	uploadClient *http.Client // uploads get a longer ceiling

	mu      sync.Mutex
	session *gateway.Session
	subs    map[int]chan gateway.AuthEvent
	nextSub int
}

var _ gateway.Gateway = (*Client)(nil)

func New(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		uploadClient: &http.Client{
			Timeout: uploadTimeout,
		},
		subs: make(map[int]chan gateway.AuthEvent),
	}
}

// Health reads a single landing_content id. It exists to verify the
// backend is reachable and to wake a paused project.
func (c *Client) Health(ctx context.Context) error {
	var rows []struct {
		ID int `json:"id"`
	}
	return c.doJSON(ctx, http.MethodGet, "/rest/v1/landing_content?select=id&limit=1", nil, nil, &rows)
}

// doJSON issues a request with the standard api headers, classifies
// error responses, and optionally decodes the response body into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, extraHeaders map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gateway.Unreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	if s := c.currentSessionLocked(); s != nil {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
}

func (c *Client) currentSessionLocked() *gateway.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// classifyResponse extracts the backend's error message from whichever
// field it used and maps it to the error taxonomy.
func classifyResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
	}
	_ = json.Unmarshal(raw, &payload)

	message := payload.Message
	if message == "" {
		message = payload.ErrorDescription
	}
	if message == "" {
		message = payload.Msg
	}
	if message == "" {
		message = payload.ErrorCode
	}
	if message == "" {
		message = string(raw)
	}
	return gateway.Classify(resp.StatusCode, message)
}
