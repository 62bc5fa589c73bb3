package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const toolClaimsKey contextKey = "toolClaims"

// ToolSecretHeader carries the shared secret configured on the voice assistant.
const ToolSecretHeader = "X-Vapi-Secret"

// ToolAuth guards the tool webhooks. A request passes when it carries the
// shared secret in ToolSecretHeader or an HS256 bearer token signed with it.
// An empty secret disables the check.
func ToolAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if provided := r.Header.Get(ToolSecretHeader); provided != "" {
				if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
					http.Error(w, "invalid tool secret", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing tool credentials", http.StatusUnauthorized)
				return
			}
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims,
				func(token *jwt.Token) (any, error) {
					return []byte(secret), nil
				},
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			)
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), toolClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ToolClaimsFromContext returns the bearer token claims if the request was
// authenticated with one.
func ToolClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(toolClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}
