package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldforge/server/pkg/config"
)

func signToken(t *testing.T, secret, audience, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifierVerify(t *testing.T) {
	v := NewVerifier(config.AuthConfig{JWTSecret: "s3cr3t", JWTAudience: "authenticated"})

	t.Run("valid token returns subject", func(t *testing.T) {
		tok := signToken(t, "s3cr3t", "authenticated", "player-1", time.Now().Add(time.Hour))
		subject, err := v.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "player-1", subject)
	})

	t.Run("wrong audience rejected", func(t *testing.T) {
		tok := signToken(t, "s3cr3t", "other-aud", "player-1", time.Now().Add(time.Hour))
		_, err := v.Verify(tok)
		assert.Error(t, err)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		tok := signToken(t, "s3cr3t", "authenticated", "player-1", time.Now().Add(-time.Hour))
		_, err := v.Verify(tok)
		assert.Error(t, err)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		tok := signToken(t, "wrong-secret", "authenticated", "player-1", time.Now().Add(time.Hour))
		_, err := v.Verify(tok)
		assert.Error(t, err)
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("s3cr3t"))
		require.NoError(t, err)
		_, err = v.Verify(signed)
		assert.Error(t, err)
	})
}

func newTestRouter(handlerMiddleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlerMiddleware)
	r.GET("/protected", func(c *gin.Context) {
		playerID, _ := PlayerID(c)
		c.JSON(http.StatusOK, gin.H{"player_id": playerID})
	})
	return r
}

func TestAPIKeyGate(t *testing.T) {
	cfg := config.AuthConfig{APIKeyRequired: true, APIKey: "topsecret"}
	r := newTestRouter(APIKeyGate(cfg))

	t.Run("missing key rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("correct key allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("X-API-Key", "topsecret")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAPIKeyGateNoopWhenUnconfigured(t *testing.T) {
	cfg := config.AuthConfig{APIKeyRequired: false}
	r := newTestRouter(APIKeyGate(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTMiddleware(t *testing.T) {
	v := NewVerifier(config.AuthConfig{JWTSecret: "s3cr3t", JWTAudience: "authenticated"})
	r := newTestRouter(JWTMiddleware(v))

	t.Run("missing header rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid bearer token sets player id", func(t *testing.T) {
		tok := signToken(t, "s3cr3t", "authenticated", "player-42", time.Now().Add(time.Hour))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "player-42")
	})
}
