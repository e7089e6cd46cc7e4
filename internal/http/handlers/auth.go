package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"service-schedule/internal/domain"
	"service-schedule/internal/service"
)

type viewerKey struct{}

// Authenticator resolves the X-User-ID header into a domain.Viewer through
// the identity service and stores it on the request context.
type Authenticator struct {
	identity service.IdentityClient
	log      *zap.Logger
}

func NewAuthenticator(identity service.IdentityClient, log *zap.Logger) *Authenticator {
	return &Authenticator{identity: identity, log: log}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("X-User-ID")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing_user")
			return
		}
		userID, err := uuid.Parse(header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_user")
			return
		}

		viewer, err := service.ResolveViewer(r.Context(), a.identity, userID)
		if err != nil {
			writeServiceError(w, a.log, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), viewerKey{}, viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ViewerFrom returns the viewer stored by Authenticator.
func ViewerFrom(ctx context.Context) (domain.Viewer, bool) {
	viewer, ok := ctx.Value(viewerKey{}).(domain.Viewer)
	return viewer, ok
}

func viewerOf(r *http.Request) domain.Viewer {
	viewer, _ := ViewerFrom(r.Context())
	return viewer
}
