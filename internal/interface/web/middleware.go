package web

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/time/rate"
)

// SentryMiddleware reports to Sentry the errors attached to a request and the
// panics recovered while handling it.
func SentryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		hub := sentry.CurrentHub().Clone()

		defer func() {
			if r := recover(); r != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(c.Request)
					hub.RecoverWithContext(c.Request.Context(), r)
				})
				panic(r)
			}
		}()

		c.Next()

		for _, err := range c.Errors {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("method", c.Request.Method)
				scope.SetTag("path", c.FullPath())
				scope.SetTag("status", http.StatusText(c.Writer.Status()))
				scope.SetTag("ip", c.ClientIP())
				scope.SetTag("user-agent", c.Request.UserAgent())
				scope.SetExtra("latency", time.Since(start).String())
				scope.SetRequest(c.Request)
				hub.CaptureException(err.Err)
			})
		}
	}
}

// AccessKeyMiddleware guards the endpoints reserved to the shop backend. The
// key is read from the Authorization header, or from the accessKey field of a
// JSON body.
func AccessKeyMiddleware(accessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Authorization")
		if key == "" && c.Request.Body != nil && c.ContentType() == binding.MIMEJSON {
			var body struct {
				AccessKey string `json:"accessKey"`
			}
			// nolint:all
			c.ShouldBindBodyWith(&body, binding.JSON)
			key = body.AccessKey
		}

		if accessKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(accessKey)) != 1 {
			e := domain.ErrAccessKey
			c.AbortWithStatusJSON(http.StatusOK, gin.H{
				"code": e.Code, "data": nil, "error": gin.H{"message": e.Message},
			})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware allows limit requests per second to each client ip.
func RateLimitMiddleware(limit float64) gin.HandlerFunc {
	limiters := newIPLimiters(limit)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests, "data": nil, "error": gin.H{"message": "Too many requests"},
			})
			return
		}
		c.Next()
	}
}

type ipLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	// TODO: evict the limiters of clients idle for longer than a minute.
	limiters map[string]*rate.Limiter
}

func newIPLimiters(limit float64) *ipLimiters {
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}
	return &ipLimiters{
		limit:    rate.Limit(limit),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}
