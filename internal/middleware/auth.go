package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"edms/internal/auth"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
	"edms/internal/httputil"
)

// UserLookup is the part of the user repository the middleware needs
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

var _ UserLookup = (repositories.UserRepository)(nil)

// AuthMiddleware validates bearer tokens and loads the local account.
// Requests to public paths pass through; if they carry a valid token the
// user is still attached.
func AuthMiddleware(verifier auth.JWTVerifier, users UserLookup, public PublicPaths, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isPublic := r.Method == http.MethodOptions || public.Match(r.URL.Path)

			tokenString, ok := bearerToken(r)
			if !ok {
				if isPublic {
					next.ServeHTTP(w, r)
					return
				}
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			user, err := resolveUser(r, verifier, users, tokenString)
			if err != nil {
				if isPublic {
					next.ServeHTTP(w, r)
					return
				}
				if errors.Is(err, domain.ErrUnauthorized) {
					httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				logger.Error("failed to load authenticated user", "error", err, "path", r.URL.Path)
				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, httputil.WithUser(r, user))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

// resolveUser verifies the token and loads the account it names. Local
// tokens carry the user ID; tokens from an external provider only the email.
func resolveUser(r *http.Request, verifier auth.JWTVerifier, users UserLookup, tokenString string) (*models.User, error) {
	claims, err := verifier.VerifyToken(tokenString)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	var user *models.User
	if claims.Subject != "" {
		id, perr := claims.GetUserID()
		if perr != nil {
			return nil, domain.ErrUnauthorized
		}
		user, err = users.GetByID(r.Context(), id)
	} else {
		user, err = users.GetByEmail(r.Context(), strings.ToLower(claims.Email))
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

// PublicPaths lists routes reachable without a token. An entry ending in
// "/" matches every path below it.
type PublicPaths []string

func (p PublicPaths) Match(path string) bool {
	for _, prefix := range p {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == prefix {
			return true
		}
	}
	return false
}
