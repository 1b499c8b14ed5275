package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"chatstream/pkg/config"
	"chatstream/pkg/logger"
	"chatstream/pkg/utils"
)

// Role identifies the caller class resolved from the request credentials.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleFrontend:
		return "frontend"
	case RoleBackend:
		return "backend"
	case RoleAdmin:
		return "admin"
	default:
		return "unauth"
	}
}

type ctxKey int

const (
	roleKey ctxKey = iota
	apiKeyKey
)

// Gateway holds the request gate configuration: key sets per role, CORS
// origins, an optional IP whitelist, and per-key rate limiting.
type Gateway struct {
	FrontendKeys   map[string]struct{}
	BackendKeys    map[string]struct{}
	AdminKeys      map[string]struct{}
	AllowedOrigins []string
	IPWhitelist    []string
	Limiter        *LimiterPool
}

// NewGateway builds a Gateway from security config.
func NewGateway(sec config.SecurityConfig) *Gateway {
	toSet := func(keys []string) map[string]struct{} {
		m := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				m[k] = struct{}{}
			}
		}
		return m
	}
	g := &Gateway{
		FrontendKeys:   toSet(sec.APIKeys.Frontend),
		BackendKeys:    toSet(sec.APIKeys.Backend),
		AdminKeys:      toSet(sec.APIKeys.Admin),
		AllowedOrigins: sec.CORS.AllowedOrigins,
		IPWhitelist:    sec.IPWhitelist,
	}
	if sec.RateLimit.RPS > 0 {
		g.Limiter = NewLimiterPool(sec.RateLimit.RPS, sec.RateLimit.Burst)
	}
	return g
}

// Middleware authenticates the request, applies CORS headers, enforces the
// IP whitelist and per-key rate limits, and stores the resolved role on the
// request context. Unauthenticated requests are rejected except for health
// endpoints, which are mounted before this middleware.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && g.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key, X-User-ID, X-User-Signature, Last-Event-ID")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if len(g.IPWhitelist) > 0 && !g.ipAllowed(r) {
			logger.Warn("ip_rejected", "remote", r.RemoteAddr, "path", r.URL.Path)
			utils.JSONError(w, http.StatusForbidden, "forbidden")
			return
		}

		key := extractKey(r)
		role := g.resolveRole(key)
		if role == RoleUnauth {
			logger.Warn("unauthenticated_request", "path", r.URL.Path, "headers", logger.SafeHeaders(r))
			utils.JSONError(w, http.StatusUnauthorized, "missing or invalid API key")
			return
		}
		if role == RoleFrontend && !frontendAllowed(r) {
			utils.JSONError(w, http.StatusForbidden, "forbidden for frontend keys")
			return
		}
		if g.Limiter != nil && !g.Limiter.Allow(key) {
			utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx := context.WithValue(r.Context(), roleKey, role)
		ctx = context.WithValue(ctx, apiKeyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// frontendAllowed restricts frontend keys to the chat surface. Admin and
// key-management routes need backend or admin keys.
func frontendAllowed(r *http.Request) bool {
	p := r.URL.Path
	switch {
	case strings.HasPrefix(p, "/v1/chats"):
		return true
	case p == "/v1/embeddings" && r.Method == http.MethodPost:
		return true
	case p == "/v1/stream" && r.Method == http.MethodGet:
		return true
	case strings.HasPrefix(p, "/v1/streams/") && r.Method == http.MethodGet:
		return true
	}
	return false
}

func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func (g *Gateway) resolveRole(key string) Role {
	if key == "" {
		return RoleUnauth
	}
	if _, ok := g.AdminKeys[key]; ok {
		return RoleAdmin
	}
	if _, ok := g.BackendKeys[key]; ok {
		return RoleBackend
	}
	if _, ok := g.FrontendKeys[key]; ok {
		return RoleFrontend
	}
	return RoleUnauth
}

func (g *Gateway) originAllowed(origin string) bool {
	for _, o := range g.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (g *Gateway) ipAllowed(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	for _, ip := range g.IPWhitelist {
		if ip == host {
			return true
		}
	}
	return false
}

// RoleFromContext returns the role stored by the gateway middleware.
func RoleFromContext(ctx context.Context) Role {
	if v, ok := ctx.Value(roleKey).(Role); ok {
		return v
	}
	return RoleUnauth
}

// KeyFromContext returns the API key the request authenticated with.
func KeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(apiKeyKey).(string); ok {
		return v
	}
	return ""
}

// RequireRole wraps a handler and rejects requests below the minimum role.
func RequireRole(min Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) < min {
			utils.JSONError(w, http.StatusForbidden, "insufficient privileges")
			return
		}
		next(w, r)
	}
}
