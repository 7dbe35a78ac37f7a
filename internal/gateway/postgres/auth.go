package postgres

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ubika-app/directory-core/internal/gateway"
	"golang.org/x/crypto/bcrypt"
)

const sessionLifetime = time.Hour

// SignUp creates an auth user and its profile row. Self-hosted
// deployments have no email confirmation step, so a session is issued
// immediately.
func (g *Gateway) SignUp(ctx context.Context, creds gateway.Credentials) (*gateway.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var userID string
	err = g.pool.QueryRow(ctx, `
insert into auth_users (email, password_hash, full_name)
values ($1, $2, $3)
returning id::text;
`, creds.Email, string(hash), creds.FullName).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, gateway.Classify(http.StatusConflict, "User already registered")
		}
		return nil, err
	}

	if _, err := g.InsertProfile(ctx, gateway.ProfileRow{
		ID:       userID,
		Email:    creds.Email,
		FullName: creds.FullName,
		Role:     "CLIENT",
	}); err != nil {
		log.Printf("[warn] operation=sign_up profile provisioning failed error=%v", err)
	}

	sess := g.issueSession(userID, creds.Email)
	g.storeSession(sess, gateway.EventSignedIn)
	return sess, nil
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	var userID, hash string
	err := g.pool.QueryRow(ctx, `
select id::text, password_hash from auth_users where email = lower($1);
`, email).Scan(&userID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gateway.Classify(http.StatusBadRequest, "Invalid login credentials")
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, gateway.Classify(http.StatusBadRequest, "Invalid login credentials")
	}

	sess := g.issueSession(userID, email)
	g.storeSession(sess, gateway.EventSignedIn)
	return sess, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	g.storeSession(nil, gateway.EventSignedOut)
	return nil
}

func (g *Gateway) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	g.mu.Lock()
	s := g.session
	g.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		g.storeSession(nil, gateway.EventSignedOut)
		return nil, nil
	}
	return s, nil
}

func (g *Gateway) SubscribeAuth() *gateway.Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextSub
	g.nextSub++
	ch := make(chan gateway.AuthEvent, 8)
	g.subs[id] = ch

	return gateway.NewSubscription(ch, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if sub, ok := g.subs[id]; ok {
			delete(g.subs, id)
			close(sub)
		}
	})
}

func (g *Gateway) issueSession(userID, email string) *gateway.Session {
	expires := time.Now().Add(sessionLifetime)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.jwtSecret)
	if err != nil {
		log.Printf("[warn] operation=issue_session sign token error=%v", err)
	}
	return &gateway.Session{
		UserID:      userID,
		Email:       email,
		AccessToken: token,
		ExpiresAt:   expires,
	}
}

func (g *Gateway) storeSession(s *gateway.Session, kind gateway.AuthEventKind) {
	g.mu.Lock()
	g.session = s
	subs := make([]chan gateway.AuthEvent, 0, len(g.subs))
	for _, ch := range g.subs {
		subs = append(subs, ch)
	}
	g.mu.Unlock()

	ev := gateway.AuthEvent{Kind: kind, Session: s}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[warn] operation=auth_event subscriber buffer full, dropping %s", ev.Key())
		}
	}
}
