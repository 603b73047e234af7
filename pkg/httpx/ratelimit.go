package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/ratelimit"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, client ID, etc.)
type KeyExtractor func(*http.Request) string

// RemoteIPKeyExtractor uses the connection's peer address only. Use it when
// the service is reachable directly.
func RemoteIPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ForwardedIPKeyExtractor extracts the client IP address behind one trusted
// reverse proxy. It takes the rightmost X-Forwarded-For entry, the address
// the proxy itself appended; entries to its left are client supplied.
// X-Real-IP is used when X-Forwarded-For is absent.
func ForwardedIPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			if ip := strings.TrimSpace(hops[i]); ip != "" {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return RemoteIPKeyExtractor(r)
}

// UserIDKeyExtractor keys on the authenticated user, or "" when anonymous.
func UserIDKeyExtractor(r *http.Request) string {
	if id, ok := UserIDFrom(r.Context()); ok {
		return strconv.FormatInt(id, 10)
	}
	return ""
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", UserIDKeyExtractor, RemoteIPKeyExtractor)
// would produce keys like "42:192.168.1.1"
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// RateLimit throttles an operation per client. Bucket keys are
// "<op>:<client>". Every response carries the X-RateLimit-* headers; a
// rejected request gets 429 RATE_LIMIT_EXCEEDED with the reset time.
//
// If the limiter backend fails the request is rejected with
// SERVICE_UNAVAILABLE; an unchecked request is never let through.
func RateLimit(l ratelimit.Limiter, op string, rule ratelimit.Rule, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			client := keyExtractor(r)
			if client == "" {
				log.Warn("rate limit: unable to extract key, allowing request", "op", op)
				next.ServeHTTP(w, r)
				return
			}
			key := ratelimit.Key(op, client)

			ok, info, err := l.Allow(ctx, key, rule.Requests, rule.Window)
			if err != nil {
				log.Error("rate limit backend failed, rejecting request", "op", op, "err", err)
				errcode.Write(w, oops.
					Code(errcode.ServiceUnavailable).
					Errorf("rate limiter unavailable, try again later"))
				return
			}

			if !ok {
				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"reset_time", info.ResetTime.Unix(),
				)
				errcode.Write(w, oops.
					Code(errcode.RateLimitExceeded).
					With(errcode.KeyLimit, info.Limit).
					With(errcode.KeyRemaining, info.Remaining).
					With(errcode.KeyResetTime, info.ResetTime.Unix()).
					Errorf("too many %s requests, try again later", op))
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

			next.ServeHTTP(w, r)
		})
	}
}
