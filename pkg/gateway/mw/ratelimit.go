package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/gateway/apierror"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/auth"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/ratelimit"
)

// RateLimit applies the per-principal token bucket to REST requests. The
// interview WebSocket endpoints hold long-lived sessions and are capped by
// the session limiter in their handler instead.
func RateLimit(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health endpoints must remain cheap and reliable.
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		principal := "anonymous"
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			principal = ratelimit.PrincipalKeyFromAPIKey(p.APIKey)
		}

		dec := limiter.AcquireRequest(principal, time.Now())
		if !dec.Allowed {
			reqID, _ := RequestIDFrom(r.Context())
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
			}
			writeJSONError(w, http.StatusTooManyRequests, &apierror.Body{
				Kind: "rate_limit", Message: "rate limit exceeded", RequestID: reqID,
			})
			return
		}
		defer dec.Permit.Release()

		next.ServeHTTP(w, r)
	})
}
