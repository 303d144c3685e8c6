package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/lockguard/internal/auth"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	// IPConfig decides which forwarding headers are trusted when keying by
	// client address. Nil means only the peer address is used.
	IPConfig *pkghttp.IPConfig
}

// DefaultLoginRateLimit returns the default limit for the login endpoint
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
	}
}

// RateLimitByIP limits requests per client address. It runs in front of the
// lockout guard so that one address cannot lock many accounts quickly.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "ip:" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

// RateLimitByUserID limits authenticated requests per token subject and
// falls back to the client address when no claims are present.
func RateLimitByUserID(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return "user:" + claims.UserID, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
}
