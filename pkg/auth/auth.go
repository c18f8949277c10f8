// Package auth is the identity boundary: an X-API-Key gate in front of
// every HTTP endpoint except /health and OPTIONS preflight, plus JWT
// verification of the identity provider's HS256 user tokens
// (aud=authenticated) via github.com/golang-jwt/jwt/v5.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/worldforge/server/pkg/config"
)

// ContextPlayerIDKey is the gin context key JWTMiddleware sets the
// verified subject claim under.
const ContextPlayerIDKey = "player_id"

// Claims is the identity provider's user JWT shape: a subject claim plus
// the registered claims used for expiry and audience checks.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates user JWTs against the identity provider's shared
// HS256 secret and required audience.
type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier builds a Verifier from cfg.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret), audience: cfg.JWTAudience}
}

// Verify parses and validates tokenString, returning the subject claim
// (the identity provider's user id, stored as Player.UserID) on success.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithAudience(v.audience))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("auth: token missing subject claim")
	}
	return subject, nil
}

// APIKeyGate returns gin middleware enforcing the X-API-Key header on
// every request except /health and CORS preflight, when an API key is
// configured. When no key is configured the gate is a
// no-op.
func APIKeyGate(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.APIKeyRequired || c.Request.Method == http.MethodOptions || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != cfg.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// JWTMiddleware returns gin middleware that verifies the bearer token on
// the Authorization header and sets ContextPlayerIDKey to its subject.
// A missing JWTSecret is a startup-time fatal; this
// middleware assumes verifier is non-nil.
func JWTMiddleware(verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
			return
		}

		playerID, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextPlayerIDKey, playerID)
		c.Next()
	}
}

// PlayerID extracts the verified token subject set by JWTMiddleware: the
// identity provider's user id (Player.UserID), not a Player.ID.
func PlayerID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextPlayerIDKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
