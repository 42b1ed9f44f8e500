package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tariffshift/tariffshift/pkg/log"
)

// tokenVerifier validates a raw ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

func newGoogleVerifier(ctx context.Context, audience string) (tokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, err
	}
	return provider.Verifier(&oidc.Config{ClientID: audience}).Verify, nil
}

// authMiddleware enforces bearer-token verification when an OIDC audience is
// configured. Without one the API is open; the data is read-only run
// artifacts.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))
		r = r.WithContext(ctx)

		if s.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeJSONError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := s.verifier(ctx, token); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token verification failed", slog.Any("error", err))
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
