package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/campusrec/campusrec/internal/shared"
)

const bearerPrefix = "bearer "

// Middleware attaches the verified principal to the request context. Requests
// without a valid bearer token continue anonymously; guards decide whether
// that is acceptable.
func Middleware(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || resolver == nil {
				next.ServeHTTP(w, r)
				return
			}
			principalID, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if logger != nil {
					logger.Debug("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), principalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
