package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goGuard/jwt"
)

// TokenParser verifies an operator bearer token. *jwt.Manager implements it.
type TokenParser interface {
	Parse(token string) (*jwt.OperatorClaims, error)
}

type operatorContextKey struct{}

// OperatorFromContext returns the claims stored by RequireOperator.
func OperatorFromContext(ctx context.Context) (*jwt.OperatorClaims, bool) {
	claims, ok := ctx.Value(operatorContextKey{}).(*jwt.OperatorClaims)
	return claims, ok
}

// RequireOperator rejects requests without a valid operator token carrying
// scope. Missing or invalid tokens get 401, a valid token without the scope
// gets 403.
func RequireOperator(parser TokenParser, scope jwt.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parser == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := parser.Parse(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !claims.HasScope(scope) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), operatorContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
