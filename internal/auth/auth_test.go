package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrevia/internal/utils/extractor"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestVerifyToken(t *testing.T) {
	signed := signToken(t, jwt.MapClaims{
		"sub":   "u-1",
		"name":  "Ana",
		"email": "ana@example.com",
		"plan":  "pro",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	identity, err := VerifyToken("Bearer "+signed, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.UID)
	assert.Equal(t, "pro", identity.Plan)

	identity, err = VerifyToken(signed, testSecret)
	require.NoError(t, err, "the Bearer prefix is optional")
	assert.Equal(t, "u-1", identity.UID)
}

func TestVerifyTokenRejectsBadInput(t *testing.T) {
	_, err := VerifyToken("", testSecret)
	assert.Error(t, err)

	signed := signToken(t, jwt.MapClaims{"sub": "u-1"})
	_, err = VerifyToken(signed, "other-secret")
	assert.Error(t, err)

	expired := signToken(t, jwt.MapClaims{
		"sub": "u-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = VerifyToken(expired, testSecret)
	assert.Error(t, err)

	noSubject := signToken(t, jwt.MapClaims{"email": "ana@example.com"})
	_, err = VerifyToken(noSubject, testSecret)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	ext := extractor.New()
	var gotUID string
	handler := Middleware(&Config{Secret: testSecret})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := ext.GetUserID(r.Context())
		require.NoError(t, err)
		gotUID = uid
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"sub": "u-42"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-42", gotUID)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Credenciais invalidas"}`, rec.Body.String())
}
