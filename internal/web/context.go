package web

import (
	"net/http"

	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/web/middleware"
)

// withSource tags the request context with "api:<client ip>" so repository
// logs name the caller. It runs after TrustedRealIP.
func withSource(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithSource(r.Context(), "api:"+middleware.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
