package auth

import (
	"encoding/json"
	"net/http"
)

// Middleware returns HTTP middleware that requires a valid bearer token.
// A nil authenticator disables the check. Paths listed in public are served
// without authentication.
func Middleware(authenticator Authenticator, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			token, err := TokenFromAuthorizationHeader(r.Header.Get("Authorization"))
			if err == nil {
				ctx, verr := ValidateToken(r.Context(), token, authenticator)
				if verr == nil {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				err = verr
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="glimpsy"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		})
	}
}
