package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const visitorTTL = 10 * time.Minute

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimit caps request bursts per caller. The caller key is the
// guest id when the client sends one, the remote address otherwise.
func RateLimit(limit rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
	)

	return func(c *gin.Context) {
		key := c.GetHeader("X-Guest-ID")
		if key == "" {
			key = c.ClientIP()
		}

		mu.Lock()
		v, ok := visitors[key]
		if !ok {
			// Opportunistic sweep keeps the map from growing with
			// one-off callers.
			for k, old := range visitors {
				if time.Since(old.lastSeen) > visitorTTL {
					delete(visitors, k)
				}
			}
			v = &visitor{lim: rate.NewLimiter(limit, burst)}
			visitors[key] = v
		}
		v.lastSeen = time.Now()
		mu.Unlock()

		if !v.lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Demasiadas solicitudes. Intenta de nuevo en unos segundos.",
			})
			return
		}
		c.Next()
	}
}
