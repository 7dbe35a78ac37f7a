// Package postgres implements the remote data gateway against a
// self-hosted database. Unlike the hosted backend, the like operations
// here enforce idempotency server-side inside a transaction.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ubika-app/directory-core/internal/gateway"
)

type Options struct {
	DSN           string
	JWTSecret     string
	MediaDir      string
	PublicBaseURL string
	ConnectTO     time.Duration
	PingTO        time.Duration
}

// Gateway serves rows, auth, like RPCs and media blobs from a local
// deployment.
type Gateway struct {
	pool          *pgxpool.Pool
	jwtSecret     []byte
	mediaDir      string
	publicBaseURL string

	mu      sync.Mutex
	session *gateway.Session
	subs    map[int]chan gateway.AuthEvent
	nextSub int
}

var _ gateway.Gateway = (*Gateway)(nil)

// Open connects the pool, pings it with its own deadline, and returns
// the gateway.
func Open(ctx context.Context, opt Options) (*Gateway, error) {
	if opt.DSN == "" {
		return nil, fmt.Errorf("DB_DSN is not set")
	}
	if opt.ConnectTO == 0 {
		opt.ConnectTO = 5 * time.Second
	}
	if opt.PingTO == 0 {
		opt.PingTO = 2 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, opt.ConnectTO)
	defer cancel()

	pool, err := pgxpool.New(cctx, opt.DSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pctx, pcancel := context.WithTimeout(ctx, opt.PingTO)
	defer pcancel()

	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &Gateway{
		pool:          pool,
		jwtSecret:     []byte(opt.JWTSecret),
		mediaDir:      opt.MediaDir,
		publicBaseURL: opt.PublicBaseURL,
		subs:          make(map[int]chan gateway.AuthEvent),
	}, nil
}

func (g *Gateway) Close() {
	if g != nil && g.pool != nil {
		g.pool.Close()
	}
}

// Health performs the minimal read used by the bootstrap probe.
func (g *Gateway) Health(ctx context.Context) error {
	var one int
	if err := g.pool.QueryRow(ctx, `select 1`).Scan(&one); err != nil {
		return gateway.Unreachable(err)
	}
	return nil
}
