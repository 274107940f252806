package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// UserLookup resolves a user id to a sanitized user.
type UserLookup interface {
	FindPublicByID(ctx context.Context, id string) (models.User, error)
}

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (AccessClaims, error)
}

// Gate authenticates requests to protected routes.
type Gate struct {
	Tokens AccessVerifier
	Users  UserLookup
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate resolves the caller of r. The token comes from the accessToken
// cookie, else from an Authorization: Bearer header.
func (g Gate) Authenticate(r *http.Request) (models.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return models.User{}, apierror.Unauthorized("Unauthorized request")
	}

	claims, err := g.Tokens.VerifyAccess(token)
	if err != nil {
		return models.User{}, apierror.Wrap(http.StatusUnauthorized, "Invalid access token", err)
	}

	user, err := g.Users.FindPublicByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apierror.Wrap(http.StatusUnauthorized, "Invalid access token", err)
		}
		return models.User{}, apierror.Internal("Failed to resolve access token", err)
	}

	return user.Sanitized(), nil
}

// Middleware rejects unauthenticated requests through onError and otherwise
// stores the caller on the request context.
func (g Gate) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			ctx := WithUser(r.Context(), user)
			ctx = logging.With(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the candidate access token, cookie first.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

type userKey struct{}

// WithUser stores the authenticated caller on ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey{}).(models.User)
	return user, ok && user.ID != ""
}
