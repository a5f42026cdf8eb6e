package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alertdeck/alertdeck/internal/api"
)

// AnonymousPrincipal attributes writes when authentication is disabled
const AnonymousPrincipal = "anonymous"

// principalContextKey is the context key for the authenticated principal
type principalContextKey struct{}

// PrincipalClaims are the JWT claims this middleware understands. Tokens are
// issued by an external SSO/session layer; this middleware only validates
// them and extracts the principal used to attribute acknowledgment writes.
type PrincipalClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalConfig configures the principal extraction middleware
type PrincipalConfig struct {
	// Enabled enforces a valid bearer token on every wrapped request.
	// When false, requests pass through with the anonymous principal.
	Enabled bool

	// Secret is the HS256 signing secret shared with the token issuer
	Secret string

	// SkipPaths bypass enforcement (health checks, the ws endpoint
	// authenticates via query token instead)
	SkipPaths []string
}

// PrincipalMiddleware validates bearer tokens and stores the caller's
// identity in the request context.
type PrincipalMiddleware struct {
	config  *PrincipalConfig
	skipMap map[string]bool
}

// NewPrincipalMiddleware creates the middleware from its config
func NewPrincipalMiddleware(config *PrincipalConfig) *PrincipalMiddleware {
	m := &PrincipalMiddleware{config: config, skipMap: make(map[string]bool)}
	for _, path := range config.SkipPaths {
		m.skipMap[path] = true
	}
	return m
}

// Wrap enforces authentication on the wrapped handler
func (m *PrincipalMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled || m.skipMap[r.URL.Path] {
			ctx := context.WithValue(r.Context(), principalContextKey{}, AnonymousPrincipal)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		principal, err := m.validate(bearerToken(r))
		if err != nil {
			api.RespondError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validate parses the token and returns the principal it names
func (m *PrincipalMiddleware) validate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", jwt.ErrTokenMalformed
	}

	claims := &PrincipalClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenMalformed
	}

	if claims.Username != "" {
		return claims.Username, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", jwt.ErrTokenInvalidClaims
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// GetPrincipal returns the authenticated principal from the context
func GetPrincipal(ctx context.Context) string {
	if p, ok := ctx.Value(principalContextKey{}).(string); ok && p != "" {
		return p
	}
	return AnonymousPrincipal
}
