package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	logpkg "github.com/kailas-cloud/reportlens/internal/logger"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// Identity is the authenticated caller. UserID is the token subject.
type Identity struct {
	UserID string
	Email  string
}

type identityKey struct{}

// WithIdentity stores the caller in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 bearer tokens issued by the identity provider.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier. The issuer claim is checked only when issuer is set.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a token and returns the caller it names.
func (v *TokenVerifier) Verify(token string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, errors.New("token verification is not configured")
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return Identity{}, errors.New("token is not valid")
	}
	if v.issuer != "" && !c.VerifyIssuer(v.issuer, true) {
		return Identity{}, errors.New("unexpected issuer")
	}
	if c.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return Identity{UserID: c.Subject, Email: c.Email}, nil
}

// BearerAuthMiddleware rejects requests without a valid bearer token and
// stores the caller's Identity in the request context.
func BearerAuthMiddleware(verifier *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			id, err := verifier.Verify(strings.TrimSpace(auth[len(bearerPrefix):]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid token")
				return
			}

			ctx := WithIdentity(r.Context(), id)
			if ri := requestInfoFrom(ctx); ri != nil {
				ri.userID = id.UserID
			}
			ctx = logpkg.With(ctx, logpkg.UserID(id.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
