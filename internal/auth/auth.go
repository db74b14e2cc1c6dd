// Package auth resolves the calling user from a bearer token and guards
// access to subscriptions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/subtracker/subscriptions/internal/apperr"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

type contextKey string

const identityKey contextKey = "identity"

// UserIDHeader carries the caller id when header fallback is enabled.
const UserIDHeader = "X-User-Id"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller attached by Middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	// AllowHeaderFallback trusts X-User-Id when no token is sent. Local use only.
	AllowHeaderFallback bool
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Middleware attaches the caller identity to the request context when the
// request carries a valid token. Requests without one pass through
// unauthenticated; operations decide whether that is acceptable.
func Middleware(cfg Config, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header != "" {
				token, ok := bearerToken(header)
				if !ok {
					log.Debug("ignoring malformed Authorization header")
					next.ServeHTTP(w, r)
					return
				}
				id, err := ParseToken(cfg, token)
				if err != nil {
					log.WithError(err).Warn("rejected bearer token")
					next.ServeHTTP(w, r)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			if cfg.AllowHeaderFallback {
				if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{UserID: userID})))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// ParseToken verifies an HS256 token and returns its subject as the caller.
func ParseToken(cfg Config, token string) (Identity, error) {
	if cfg.Secret == "" {
		return Identity{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// IssueToken signs a token for userID valid for ttl.
func IssueToken(cfg Config, userID, email string, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// RequireUser returns the caller or an Unauthorized error.
func RequireUser(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, apperr.Unauthorized()
	}
	return id, nil
}

// Authorize checks that caller owns a record belonging to ownerID.
// action names the attempted operation in the error message.
func Authorize(caller Identity, ownerID, action string) error {
	if caller.UserID == "" || caller.UserID != ownerID {
		return apperr.Forbidden(fmt.Sprintf("Forbidden: You can only %s your own subscriptions", action))
	}
	return nil
}
