package middleware

import (
	"net/http"

	"medislot/pkg/auth"
	apperrors "medislot/pkg/errors"
	httputil "medislot/pkg/http"
	"medislot/pkg/logger"
)

// Authenticate resolves the caller from the bearer token and stores it on the
// request context. Requests without a valid token never reach next.
func Authenticate(verifier *auth.Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := verifier.Verify(auth.TokenFromRequest(r))
			if err != nil {
				log.Debug("Rejected unauthenticated request",
					"request_id", RequestIDFrom(r),
					"path", r.URL.Path,
					"error", err,
				)
				_ = httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}
