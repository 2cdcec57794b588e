package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"emsp/internal/models"
	"emsp/internal/security"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func RequireBearer(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || !security.EqualSecrets(strings.TrimPrefix(auth, "Bearer "), token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// PartyResolver finds the remote party owning a hashed local credential.
type PartyResolver interface {
	ByAccessToken(ctx context.Context, tokenHash string) (*models.RemoteParty, error)
}

type accessKey struct{}

// resolveAccess maps the OCPI token credential to the caller's roles. The
// credential was verified upstream; an unresolvable one leaves the request
// without roles instead of rejecting it.
func (s *Server) resolveAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Parties == nil {
			next.ServeHTTP(w, r)
			return
		}
		for _, candidate := range security.OCPITokenCandidates(r.Header.Get("Authorization")) {
			party, err := s.Parties.ByAccessToken(r.Context(), security.HashSecretSHA256(candidate))
			if err != nil {
				s.Log.Warn("resolve caller credential", zap.Error(err))
				break
			}
			if party != nil {
				ctx := context.WithValue(r.Context(), accessKey{}, party.AccessInfo())
				r = r.WithContext(ctx)
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}

func accessFrom(ctx context.Context) models.AccessInfo {
	info, _ := ctx.Value(accessKey{}).(models.AccessInfo)
	return info
}
