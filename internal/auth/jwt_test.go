package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	token, err := codec.Issue("user-1", "clinic-1", []RoleName{RoleDoctor, RoleAdmin})
	require.NoError(t, err)

	sess, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "clinic-1", sess.ClinicID)
	assert.Equal(t, []RoleName{RoleDoctor, RoleAdmin}, sess.Roles)
}

func TestCodecRejectsExpired(t *testing.T) {
	codec := NewCodec("test-secret", -time.Minute)

	token, err := codec.Issue("user-1", "clinic-1", []RoleName{RoleDoctor})
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRejectsWrongSecret(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	other := NewCodec("another-secret", time.Hour)

	token, err := codec.Issue("user-1", "clinic-1", []RoleName{RoleDoctor})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRejectsUnknownRole(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   "user-1",
		"cid":   "clinic-1",
		"roles": []string{"JANITOR"},
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRejectsNoneAlgorithm(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	claims := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodecRejectsMissingExpiry(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	claims := jwt.MapClaims{"sub": "user-1", "cid": "clinic-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestResolverPrefersCookie(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	res := NewResolver(codec)

	cookieToken, err := codec.Issue("cookie-user", "clinic-1", []RoleName{RoleAdmin})
	require.NoError(t, err)
	headerToken, err := codec.Issue("header-user", "clinic-2", []RoleName{RoleDoctor})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/v1/me", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: cookieToken})
	r.Header.Set("Authorization", "Bearer "+headerToken)

	p, err := res.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "cookie-user", p.UserID)
}

func TestResolverBearerFallback(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	res := NewResolver(codec)

	token, err := codec.Issue("header-user", "clinic-2", []RoleName{RoleDoctor})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/v1/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	p, err := res.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "header-user", p.UserID)
	assert.Equal(t, "clinic-2", p.ClinicID)
}

func TestResolverNoToken(t *testing.T) {
	res := NewResolver(NewCodec("test-secret", time.Hour))
	r := httptest.NewRequest("GET", "/v1/me", nil)

	_, err := res.Resolve(r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
