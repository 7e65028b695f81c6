package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"tasbeeh/internal/core"
	applog "tasbeeh/internal/log"
	"tasbeeh/internal/services"
)

// LedgerService is what the HTTP surface needs from the service layer.
type LedgerService interface {
	AddEntry(ctx context.Context, in core.NewContribution) (core.Contribution, error)
	Entries(ctx context.Context) ([]core.Contribution, error)
	Dashboard(ctx context.Context) (core.Dashboard, error)
	Preference(ctx context.Context, user string) core.Preference
	SavePreference(ctx context.Context, user, reminderTime, reminderText string) (core.Preference, error)
	Reminder(ctx context.Context, user string) (services.Reminder, error)
	Ready(ctx context.Context) bool
}

type Server struct {
	http.Server
	service     LedgerService
	members     []string
	now         func() time.Time
	rateLimiter *rateLimiter
	clients     clientResolver

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
// trustedProxies lists the peers allowed to report the client address via
// forwarding headers; nil trusts none.
func NewServer(addr string, service LedgerService, members []string, trustedProxies []*net.IPNet, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:     service,
		members:     members,
		now:         time.Now,
		rateLimiter: newRateLimiter(),
		clients:     clientResolver{trusted: trustedProxies},
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/entries", s.limitWrites(s.handleCreateEntry))
	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/preferences/{user}", s.handleGetPreference)
	mux.HandleFunc("PUT /api/preferences/{user}", s.limitWrites(s.handleSavePreference))
	mux.HandleFunc("GET /api/reminder/{user}", s.handleReminder)
	mux.HandleFunc("GET /api/daily", s.handleDaily)
	mux.HandleFunc("GET /api/members", s.handleMembers)

	s.Handler = applog.Middleware(logger)(withSecurityHeaders(mux))
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders sets the response headers every API reply carries.
func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// limitWrites applies the per-client rate limit to mutating requests.
func (s *Server) limitWrites(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.clients.clientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				"rejected_total", s.rateLimiter.rejected(),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next(w, r)
	}
}
