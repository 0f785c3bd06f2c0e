package api

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type requestLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// requestLimiter buckets by the gateway's own identity header (key_hex)
// rather than by client IP alone: every gated request already carries the
// signer's public key, so a client can't evade its bucket by rotating
// source IPs behind the same key, and a high-traffic signer sharing a
// NAT'd IP with other signers isn't penalized for its neighbors.
// Requests that never present a key_hex fall back to IP.
type requestLimiter struct {
	mu          sync.Mutex
	entries     map[string]*requestLimiterEntry
	lastCleanup time.Time

	rps   rate.Limit
	burst int
	ttl   time.Duration
}

var apiRequestLimiter = newRequestLimiterFromEnv()

func newRequestLimiterFromEnv() *requestLimiter {
	rps := 10.0
	if v := strings.TrimSpace(os.Getenv("API_RATE_LIMIT_RPS")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			rps = n
		}
	}
	burst := 20
	if v := strings.TrimSpace(os.Getenv("API_RATE_LIMIT_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	ttl := 15 * time.Minute
	if v := strings.TrimSpace(os.Getenv("API_RATE_LIMIT_TTL_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Minute
		}
	}
	return &requestLimiter{
		entries: make(map[string]*requestLimiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
	}
}

func rateLimitMiddleware(next http.Handler) http.Handler {
	// Disable if rps <= 0
	if apiRequestLimiter == nil || apiRequestLimiter.rps <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Exempt the liveness probe.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		key := rateLimitKey(r)

		if !apiRequestLimiter.allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(apiRequestLimiter.rps)))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *requestLimiter) allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Periodic cleanup (amortized).
	if l.lastCleanup.IsZero() || now.Sub(l.lastCleanup) > time.Minute {
		for k, v := range l.entries {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	ent := l.entries[key]
	if ent == nil {
		ent = &requestLimiterEntry{
			limiter:  rate.NewLimiter(l.rps, l.burst),
			lastSeen: now,
		}
		l.entries[key] = ent
	} else {
		ent.lastSeen = now
	}

	return ent.limiter.Allow()
}

// rateLimitKey buckets by the claimed signer key_hex header when present,
// so limiting tracks the identity the AuthGate cares about rather than
// network topology. The header isn't verified yet at this point in the
// middleware chain (rateLimitMiddleware runs ahead of the gate), so an
// attacker can still spread load across many claimed keys; clientIP is
// the fallback for requests that omit the header entirely.
func rateLimitKey(r *http.Request) string {
	if keyHex := strings.TrimSpace(r.Header.Get("key_hex")); keyHex != "" {
		return "key:" + keyHex
	}
	ip := clientIP(r)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func clientIP(r *http.Request) string {
	// Prefer X-Forwarded-For, set by a reverse proxy in front of this
	// gateway.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
