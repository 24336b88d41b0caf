package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/pkg/response"
	limiter "github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig controls the per-IP request limiter.
type RateLimiterConfig struct {
	// Rate uses the limiter format, e.g. "1000-M" for 1000 per minute.
	Rate      string
	SkipPaths []string
}

// RateLimiterMiddleware applies a per-IP limit with an in-memory store.
func RateLimiterMiddleware(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.Rate == "" {
		cfg.Rate = "1000-M"
	}
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		rate = limiter.Rate{Period: time.Minute, Limit: 1000}
	}

	instance := limiter.New(memory.NewStore(), rate)
	handler := mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			response.FailWithStatus(c, http.StatusTooManyRequests,
				"Requests too frequent, please try again later", nil)
			c.Abort()
		}))

	return func(c *gin.Context) {
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, skip) {
				c.Next()
				return
			}
		}
		handler(c)
	}
}
