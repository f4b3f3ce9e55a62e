package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/internal/chizap"
	"github.com/tgdrive/clouddrive/internal/logging"
	"go.uber.org/zap"
)

type Middleware = func(http.Handler) http.Handler

func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := r.WithContext(logging.WithLogger(r.Context(), lg))
			next.ServeHTTP(w, req)
		})
	}
}

// Authenticate resolves the bearer token to an owner id and stores it in the
// request context. Requests without a valid token get 401.
func Authenticate(v auth.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			owner, err := v.Verify(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("token rejected", zap.Error(err))
				status := http.StatusUnauthorized
				if errors.Is(err, auth.ErrForbidden) {
					status = http.StatusForbidden
				}
				unauthorized(w, status, http.StatusText(status))
				return
			}
			ctx := auth.WithUser(r.Context(), owner)
			ctx = logging.With(ctx, zap.String("owner", owner))
			req := r.WithContext(ctx)
			chizap.Capture(req)
			next.ServeHTTP(w, req)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="clouddrive"`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"kind":    "Unauthorized",
		"message": message,
	})
}
