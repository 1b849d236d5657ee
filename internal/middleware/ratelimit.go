package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mmeshcher/tapranked/internal/metrics"
	"github.com/mmeshcher/tapranked/internal/ratelimit"
)

const (
	rateLimitedMessage = "Too many requests. Please try again later."

	limiterWarnInterval = time.Minute
)

// RateLimiter ограничивает частоту запросов по действию и IP клиента.
type RateLimiter struct {
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
	// warn ограничивает предупреждения о недоступном лимитере одним в минуту.
	warn *rate.Sometimes
}

// NewRateLimiter создаёт middleware поверх указанного лимитера.
func NewRateLimiter(limiter ratelimit.Limiter, m *metrics.Metrics, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limiter: limiter,
		metrics: m,
		logger:  logger,
		warn:    &rate.Sometimes{First: 1, Interval: limiterWarnInterval},
	}
}

// Limit возвращает middleware, пропускающий не больше rule.Limit запросов за окно с одного IP.
// Ошибка лимитера запрос не блокирует.
func (rl *RateLimiter) Limit(action string, rule ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := action + ":" + ClientIP(r)

			d, err := rl.limiter.Allow(r.Context(), key, rule)
			if err != nil {
				rl.warn.Do(func() {
					rl.logger.Warn("rate limiter unavailable", zap.Error(err), zap.String("action", action))
				})
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				rl.metrics.IncRateLimited(action)
				seconds := int(math.Ceil(d.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeError(w, http.StatusTooManyRequests, rateLimitedMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP определяет адрес клиента: первый адрес X-Forwarded-For, затем X-Real-IP, затем RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
