// Package ratelimit provides single-process per-principal request limits:
// a token bucket for REST calls and a concurrency cap for interview
// WebSocket sessions.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	MaxConcurrentSessions int

	// Bounds for the in-memory principal map.
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*principalState
}

type principalState struct {
	mu sync.Mutex

	tokens float64
	last   time.Time

	sessionSem chan struct{}

	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{cfg: cfg, m: make(map[string]*principalState)}
}

// PrincipalKeyFromAPIKey derives a map key that never stores the raw key.
func PrincipalKeyFromAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "k_" + hex.EncodeToString(sum[:16])
}

// Permit releases a held concurrency slot. Safe to release more than once.
type Permit struct {
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

type Decision struct {
	Allowed    bool
	RetryAfter int
	Permit     *Permit
}

// AcquireRequest applies the token bucket to one REST request.
func (l *Limiter) AcquireRequest(principal string, now time.Time) Decision {
	if l.cfg.RPS <= 0 || l.cfg.Burst <= 0 {
		return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
	}
	ps := l.getOrCreate(principal, now)
	ok, retryAfter := ps.takeToken(now, l.cfg.RPS, float64(l.cfg.Burst))
	if !ok {
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}
	return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
}

// AcquireSession claims an interview-session slot; the permit must be
// released when the WebSocket closes.
func (l *Limiter) AcquireSession(principal string, now time.Time) Decision {
	if l.cfg.MaxConcurrentSessions <= 0 {
		return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
	}
	ps := l.getOrCreate(principal, now)
	select {
	case ps.sessionSem <- struct{}{}:
		return Decision{Allowed: true, Permit: &Permit{release: func() { <-ps.sessionSem }}}
	default:
		return Decision{Allowed: false, RetryAfter: 1}
	}
}

func (l *Limiter) getOrCreate(principal string, now time.Time) *principalState {
	if principal == "" {
		principal = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.m) >= l.cfg.MaxEntries {
		for k, v := range l.m {
			if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
				delete(l.m, k)
			}
		}
		// Bounded memory beats perfect fairness: evict one arbitrary entry
		// if the GC pass freed nothing.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	ps, ok := l.m[principal]
	if !ok {
		capacity := l.cfg.MaxConcurrentSessions
		if capacity < 1 {
			capacity = 1
		}
		ps = &principalState{
			tokens:     float64(l.cfg.Burst),
			last:       now,
			sessionSem: make(chan struct{}, capacity),
		}
		l.m[principal] = ps
	}
	ps.lastSeen = now
	return ps
}

func (ps *principalState) takeToken(now time.Time, rps, capacity float64) (bool, int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	elapsed := now.Sub(ps.last).Seconds()
	if elapsed > 0 {
		ps.tokens = math.Min(capacity, ps.tokens+elapsed*rps)
		ps.last = now
	}
	if ps.tokens >= 1.0 {
		ps.tokens -= 1.0
		return true, 0
	}

	retryAfter := int(math.Ceil((1.0 - ps.tokens) / rps))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}
