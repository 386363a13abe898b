package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayush/expense-tracker/internal/httputil"
)

type ctxKey struct{}

// TokenValidator resolves a bearer token to an account id.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// RequireAuth validates the bearer token and injects the account id into
// the request context. A missing token is 401, a rejected one 403.
func RequireAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			accountID, err := tokens.Validate(token)
			if err != nil {
				httputil.WriteError(w, http.StatusForbidden, "Forbidden")
				return
			}

			ctx := WithAccountID(r.Context(), accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithAccountID returns a copy of ctx carrying accountID.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, accountID)
}

// AccountID returns the authenticated account id stored by RequireAuth.
func AccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
