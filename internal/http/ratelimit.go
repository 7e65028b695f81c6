package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultWriteLimit  = 60
	defaultWriteWindow = time.Minute
)

// rateLimiter allows at most limit writes per client within a fixed window.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string]*clientWindow
	hits    atomic.Int64

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientWindow struct {
	started  time.Time
	lastSeen time.Time
	requests int
}

func newRateLimiter() *rateLimiter {
	rl := newRateLimiterWith(defaultWriteLimit, defaultWriteWindow, time.Now)
	go rl.startCleanup(5 * time.Minute)
	return rl
}

func newRateLimiterWith(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	return &rateLimiter{
		limit:       limit,
		window:      window,
		now:         now,
		clients:     make(map[string]*clientWindow),
		stopCleanup: make(chan struct{}),
	}
}

func (rl *rateLimiter) startCleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops clients idle for longer than ten windows.
func (rl *rateLimiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * rl.window)
	removed := 0
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// allow records a request from clientIP and reports whether it is within
// the limit.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[clientIP]
	if !ok || now.Sub(c.started) >= rl.window {
		rl.clients[clientIP] = &clientWindow{started: now, lastSeen: now, requests: 1}
		return true
	}

	c.requests++
	c.lastSeen = now
	if c.requests > rl.limit {
		rl.hits.Add(1)
		return false
	}
	return true
}

// rejected returns how many requests were refused since start.
func (rl *rateLimiter) rejected() int64 {
	return rl.hits.Load()
}

// clientResolver decides which address a write is charged to. Forwarding
// headers are believed only when the direct peer is a trusted proxy.
type clientResolver struct {
	trusted []*net.IPNet
}

func (c clientResolver) trusts(ip net.IP) bool {
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func (c clientResolver) clientIP(r *http.Request) string {
	direct, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		direct = r.RemoteAddr
	}
	if ip := net.ParseIP(direct); ip == nil || !c.trusts(ip) {
		return direct
	}

	// The left-most X-Forwarded-For entry is the originating client.
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
		return first
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return direct
}
