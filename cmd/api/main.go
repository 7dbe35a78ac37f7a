package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ubika-app/directory-core/config"
	apihttp "github.com/ubika-app/directory-core/internal/api/http"
	"github.com/ubika-app/directory-core/internal/app"
	"github.com/ubika-app/directory-core/internal/cache"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/gateway/postgres"
	"github.com/ubika-app/directory-core/internal/gateway/supabase"
)

const serviceVersion = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The cache degrades to a miss on every call; startup proceeds.
		log.Printf("[warn] operation=redis_ping addr=%s error=%v", cfg.Redis.Addr, err)
	}
	cancel()

	gw, mediaDir, err := openGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	a := app.New(gw, cache.NewManager(client), cfg.Admin.Email, cfg.Timeouts)
	if err := a.Start(ctx); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer a.Close()

	router := apihttp.NewRouter(a, apihttp.RouterOptions{
		ServiceName:    "directory-core",
		Version:        serviceVersion,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MediaDir:       mediaDir,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s (gateway=%s)", cfg.Server.Port, cfg.Gateway.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[warn] operation=shutdown error=%v", err)
	}
}

// openGateway builds the configured gateway. The returned media dir is
// non-empty only for the self-hosted flavor, which serves its own
// uploads.
func openGateway(ctx context.Context, cfg *config.Config) (gateway.Gateway, string, error) {
	switch cfg.Gateway.Kind {
	case "postgres":
		gw, err := postgres.Open(ctx, postgres.Options{
			DSN:           cfg.Gateway.DSN,
			JWTSecret:     cfg.Gateway.JWTSecret,
			MediaDir:      cfg.Gateway.MediaDir,
			PublicBaseURL: cfg.Server.PublicBaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return gw, cfg.Gateway.MediaDir, nil
	default:
		return supabase.New(cfg.Gateway.SupabaseURL, cfg.Gateway.SupabaseAnonKey), "", nil
	}
}
