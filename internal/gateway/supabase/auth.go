package supabase

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/ubika-app/directory-core/internal/gateway"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type signUpResponse struct {
	// Sign-up returns either a session (confirmation disabled) or just
	// the user (confirmation pending).
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	ID          string `json:"id"`
	Email       string `json:"email"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignUp registers the credentials with the auth service. A nil session
// with nil error means the account was created but needs email
// confirmation before sign-in.
func (c *Client) SignUp(ctx context.Context, creds gateway.Credentials) (*gateway.Session, error) {
	body := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
		"data": map[string]any{
			"full_name": creds.FullName,
			"role":      "CLIENT",
		},
	}

	var resp signUpResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", body, nil, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		return nil, nil
	}

	sess := c.sessionFromToken(resp.AccessToken, resp.User.ID, resp.User.Email, resp.ExpiresIn)
	c.storeSession(sess, gateway.EventSignedIn)
	return sess, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, nil, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, gateway.Classify(http.StatusUnauthorized, "invalid_credentials")
	}

	sess := c.sessionFromToken(resp.AccessToken, resp.User.ID, resp.User.Email, resp.ExpiresIn)
	c.storeSession(sess, gateway.EventSignedIn)
	return sess, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil)
	if err != nil {
		// The local session is discarded regardless; the server-side
		// token simply expires on its own.
		log.Printf("[warn] operation=sign_out remote logout failed error=%v", err)
	}
	c.storeSession(nil, gateway.EventSignedOut)
	return nil
}

// CurrentSession returns the active session, or (nil, nil) when there
// is none or the token has expired.
func (c *Client) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		c.storeSession(nil, gateway.EventSignedOut)
		return nil, nil
	}
	return s, nil
}

// SubscribeAuth registers a subscriber for auth-state-change events.
func (c *Client) SubscribeAuth() *gateway.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan gateway.AuthEvent, 8)
	c.subs[id] = ch

	return gateway.NewSubscription(ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	})
}

func (c *Client) storeSession(s *gateway.Session, kind gateway.AuthEventKind) {
	c.mu.Lock()
	c.session = s
	subs := make([]chan gateway.AuthEvent, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	ev := gateway.AuthEvent{Kind: kind, Session: s}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[warn] operation=auth_event subscriber buffer full, dropping %s", ev.Key())
		}
	}
}

// sessionFromToken builds the session, preferring the access token's
// own claims for identity and expiry. GoTrue access tokens are JWTs;
// they are decoded without local signature verification since the
// server remains the authority on every subsequent call.
func (c *Client) sessionFromToken(accessToken, userID, email string, expiresIn int64) *gateway.Session {
	sess := &gateway.Session{
		UserID:      userID,
		Email:       email,
		AccessToken: accessToken,
	}
	if expiresIn > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err == nil {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			sess.UserID = sub
		}
		if em, ok := claims["email"].(string); ok && em != "" {
			sess.Email = em
		}
		if exp, ok := claims["exp"].(float64); ok && exp > 0 {
			sess.ExpiresAt = time.Unix(int64(exp), 0)
		}
	}
	return sess
}
