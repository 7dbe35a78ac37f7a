// Package http exposes the directory core over a gin REST surface.
package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ubika-app/directory-core/internal/api/http/middleware"
	"github.com/ubika-app/directory-core/internal/app"
	"golang.org/x/time/rate"
)

type RouterOptions struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	// MediaDir, when set, is served under /media for the self-hosted
	// gateway's uploads.
	MediaDir string
}

func NewRouter(a *app.App, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	NewHealthHandler(opts.ServiceName, opts.Version, a).RegisterRoutes(r)
	if opts.MediaDir != "" {
		r.Static("/media", opts.MediaDir)
	}

	h := NewHandler(a)
	api := r.Group("/api/v1")

	api.GET("/status", h.Status)
	api.POST("/retry", h.Retry)

	auth := api.Group("/auth")
	auth.POST("/signup", h.SignUp)
	auth.POST("/signin", h.SignIn)
	auth.POST("/signout", h.SignOut)
	auth.GET("/me", h.Me)

	api.GET("/businesses", h.ListBusinesses)
	api.POST("/businesses", h.CreateBusiness)
	api.PATCH("/businesses/:id", h.UpdateBusiness)
	api.DELETE("/businesses/:id", h.DeleteBusiness)
	// The like limiter sits well above legitimate use; it only stops
	// scripted bursts.
	api.POST("/businesses/:id/like", middleware.RateLimit(rate.Every(time.Second), 5), h.Like)

	api.GET("/landing", h.GetLanding)
	api.PUT("/landing", h.UpdateLanding)

	api.POST("/uploads/business-image", h.UploadImage)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Guest-ID", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
