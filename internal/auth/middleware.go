package auth

import (
	"context"
	"net/http"
	"strings"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/users"
)

type userContextKey struct{}

func WithUser(ctx context.Context, user users.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

func UserFromContext(ctx context.Context) (users.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(users.User)
	return user, ok
}

// CurrentUser is UserFromContext for handlers mounted behind the Gate.
func CurrentUser(r *http.Request) (users.User, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return users.User{}, apperror.Unauthorized("Unauthorized request")
	}
	return user, nil
}

type accessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (users.User, error)
}

// Gate admits a request only when it carries a valid access token, read from
// the accessToken cookie or an Authorization: Bearer header.
type Gate struct {
	verifier   accessVerifier
	dispatcher *httpapi.Dispatcher
}

func NewGate(verifier accessVerifier, dispatcher *httpapi.Dispatcher) *Gate {
	return &Gate{verifier: verifier, dispatcher: dispatcher}
}

func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFromRequest(r)
		if token == "" {
			g.dispatcher.WriteError(w, r, apperror.Unauthorized("Unauthorized request"))
			return
		}

		user, err := g.verifier.VerifyAccess(r.Context(), token)
		if err != nil {
			g.dispatcher.WriteError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func accessTokenFromRequest(r *http.Request) string {
	if token := cookieValue(r, AccessCookieName); token != "" {
		return token
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
