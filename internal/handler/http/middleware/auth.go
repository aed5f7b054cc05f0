package middleware

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type claimsKey struct{}

// AuthRequired accepts verified access tokens and stores the caller's claims in the context.
func AuthRequired(next http.Handler) http.Handler {
	hfn := func(w http.ResponseWriter, r *http.Request) {
		token, claimsMap, err := jwtauth.FromContext(r.Context())

		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		if token == nil {
			response.HandleError(w, user.ErrInvalidToken)
			return
		}

		tokenType, ok := claimsMap["type"].(string)
		if tokenType != jwt.TokenTypeAccess || !ok {
			response.HandleError(w, user.ErrInvalidToken)
			return
		}

		claims, err := user.ClaimsFromMap(claimsMap)
		if err != nil {
			response.HandleError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	}
	return http.HandlerFunc(hfn)
}

func WithClaims(ctx context.Context, claims user.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the caller set by AuthRequired.
func ClaimsFromContext(ctx context.Context) (user.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(user.Claims)
	return claims, ok
}
