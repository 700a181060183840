// Package session verifies signed session tokens and exposes the
// authenticated user ID to handlers through the request context.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

type contextKey struct{}

// Claims carries the authenticated identity inside a session token.
type Claims struct {
	UID      int64  `json:"uid"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Middleware rejects requests without a valid session token. The token is
// read from the "session" query parameter, falling back to the "session"
// cookie, matching the clients the original web frontend ships.
type Middleware struct {
	secret []byte
	logger *zap.Logger
}

// New creates a session middleware verifying tokens with the given secret.
func New(secret string, logger *zap.Logger) *Middleware {
	return &Middleware{
		secret: []byte(secret),
		logger: logger.Named("session"),
	}
}

// AsMiddleware verifies the session and stores the user ID in the request
// context. Requests without a verifiable identity fail forbidden before the
// handler runs, regardless of cache or store state.
func (m *Middleware) AsMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		token := req.URL.Query().Get("session")
		if token == "" {
			if cookie, err := req.Cookie("session"); err == nil {
				token = cookie.Value
			}
		}

		claims, err := m.verify(token)
		if err != nil {
			m.logger.Debug("Rejected session", zap.Error(err))

			w.WriteHeader(http.StatusForbidden)

			return bunrouter.JSON(w, bunrouter.H{"error": "correct session required"})
		}

		ctx := context.WithValue(req.Context(), contextKey{}, claims.UID)
		req.Request = req.Request.WithContext(ctx)

		return next(w, req)
	}
}

func (m *Middleware) verify(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("missing session token")
	}

	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", errUnexpectedSigningMethod, t.Header["alg"])
		}

		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	if !parsed.Valid {
		return nil, errors.New("invalid session token")
	}

	return claims, nil
}

// UserIDFromContext returns the authenticated user ID stored by the
// middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(contextKey{}).(int64)
	return uid, ok
}
