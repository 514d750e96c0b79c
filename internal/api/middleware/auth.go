package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coderisedev/cs-sub003/internal/domain"
)

type contextKey string

const subjectContextKey contextKey = "subject"

// SubjectFromContext returns the verified admin caller, or nil.
func SubjectFromContext(ctx context.Context) *domain.Subject {
	s, _ := ctx.Value(subjectContextKey).(*domain.Subject)
	return s
}

// AdminAuth requires a bearer token accepted by verifier.
func AdminAuth(verifier domain.SubjectVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			subject, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if ri := infoFromContext(r.Context()); ri != nil {
				ri.subject = subject.ID
			}
			ctx := context.WithValue(r.Context(), subjectContextKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
