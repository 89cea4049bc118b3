package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/auth"
	"github.com/ukydev/fleet-manager/internal/models"
)

// streamPath accepts the token as a query parameter because browsers
// cannot set headers on a WebSocket handshake.
const streamPath = "/api/dashboard/stream"

// publicPaths are served without a session.
var publicPaths = []string{
	"/api/auth/login",
	"/api/auth/otp/verify",
	"/api/auth/register",
	"/health",
	"/metrics",
}

// AuthMiddleware resolves the caller of each request from its session
// token and guards routes by role or permission.
type AuthMiddleware struct {
	tokens *auth.Service
}

// NewAuthMiddleware creates an AuthMiddleware checking tokens with tokens.
func NewAuthMiddleware(tokens *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate puts the caller's claims in the request context. Requests
// to public paths pass through untouched.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := sessionToken(r)
		if token == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			log.WithError(err).WithField("path", r.URL.Path).Debug("Rejected session token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// RequireRole lets through callers holding one of roles. Admins always pass.
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return guard(func(c *models.Claims) bool {
		if c.Role == models.RoleAdmin {
			return true
		}
		for _, role := range roles {
			if c.Role == role {
				return true
			}
		}
		return false
	})
}

// RequirePermission lets through callers whose role may perform action.
func (m *AuthMiddleware) RequirePermission(action string) func(http.Handler) http.Handler {
	return guard(func(c *models.Claims) bool {
		return c.Role.Can(action)
	})
}

// GetUserFromContext returns the claims Authenticate stored in ctx.
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	return auth.ClaimsFromContext(ctx)
}

func guard(allowed func(*models.Claims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "User context not found", http.StatusUnauthorized)
				return
			}
			if !allowed(claims) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	if r.URL.Path == streamPath {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func isPublic(path string) bool {
	for _, p := range publicPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// slidingWindow counts the requests of each client within the last window.
type slidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	seen   map[string][]time.Time
}

// allow records a request from key at now unless key is over its limit.
func (s *slidingWindow) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.window)
	recent := s.seen[key][:0]
	for _, t := range s.seen[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= s.max {
		s.seen[key] = recent
		return false
	}
	s.seen[key] = append(recent, now)
	return true
}

// RateLimitMiddleware limits requests per client IP.
type RateLimitMiddleware struct {
	now func() time.Time
}

// NewRateLimitMiddleware creates a RateLimitMiddleware.
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{now: time.Now}
}

// RateLimit allows maxRequests per client IP within a sliding window.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	limiter := &slidingWindow{window: window, max: maxRequests, seen: make(map[string][]time.Time)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientIP(r), m.now()) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers proxy headers over the connection address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
