package httpserver

import (
	"context"
	"net/http"
	"strings"

	"terrenos/internal/domain"
)

type ctxKey int

const userKey ctxKey = iota

// Auth resolves bearer tokens through the auth gateway and enforces the
// admin allow-list. The allow-list is fixed at construction; there is no
// runtime update path.
type Auth struct {
	verifier domain.AuthVerifier
	admins   map[string]struct{}
}

func NewAuth(v domain.AuthVerifier, adminEmails []string) *Auth {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Auth{verifier: v, admins: admins}
}

// RequireUser authenticates the bearer token and stores the caller identity
// in the request context. 401 on any failure.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		u, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid session required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// RequireAdmin allows only callers whose email is on the allow-list.
// Must be mounted after RequireUser.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid session required")
			return
		}
		if _, listed := a.admins[strings.ToLower(u.Email)]; !listed {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey).(domain.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
