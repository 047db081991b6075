package httpx

import (
	"context"
	"net/http"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

type ctxKey int

const principalKey ctxKey = 0

// Auth trusts the upstream identity provider: the gateway authenticates the
// caller and forwards id and role in headers. Ownership checks stay in the
// services.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-Id")
		role := market.Role(r.Header.Get("X-User-Role"))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing identity")
			return
		}
		switch role {
		case market.RoleCustomer, market.RoleShop, market.RoleAdmin:
		default:
			writeError(w, http.StatusUnauthorized, "unknown role")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, market.Principal{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) market.Principal {
	p, _ := r.Context().Value(principalKey).(market.Principal)
	return p
}
