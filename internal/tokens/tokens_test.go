package tokens

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/gogotex/gogotex/backend/autosave/internal/config"
	"github.com/gogotex/gogotex/backend/autosave/internal/models"
)

func testConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	return cfg
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := testConfig("test-secret-32-bytes-should-be-long-enough")
	u := &models.User{Sub: "user-123", Name: "Test User", Email: "test@example.com"}

	tokenStr, err := GenerateAccessToken(cfg, u, 2*time.Minute)
	require.NoError(t, err)

	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWT.Secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, u.Sub, claims["sub"])
}

func TestGenerateAccessToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken(testConfig(""), &models.User{Sub: "x"}, time.Minute)
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerifier_AcceptsIssuedToken(t *testing.T) {
	cfg := testConfig("verifier-secret-32-bytes-xxxxxxxxxx")
	u := &models.User{Sub: "author-1", Name: "Ada", Email: "ada@example.com"}
	tokenStr, err := GenerateAccessToken(cfg, u, time.Minute)
	require.NoError(t, err)

	ver, err := NewVerifier(cfg.JWT.Secret)
	require.NoError(t, err)
	tok, err := ver.Verify(context.Background(), tokenStr)
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "author-1", claims["sub"])
	require.Equal(t, "Ada", claims["name"])

	var wrong struct{}
	require.Error(t, tok.Claims(&wrong))
}

func TestVerifier_RejectsExpired(t *testing.T) {
	cfg := testConfig("another-secret-32-bytes-longgggg")
	tokenStr, err := GenerateAccessToken(cfg, &models.User{Sub: "u2"}, -time.Minute)
	require.NoError(t, err)

	ver, err := NewVerifier(cfg.JWT.Secret)
	require.NoError(t, err)
	_, err = ver.Verify(context.Background(), tokenStr)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	tokenStr, err := GenerateAccessToken(testConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx"), &models.User{Sub: "u3"}, time.Minute)
	require.NoError(t, err)

	ver, err := NewVerifier("different-secret-xxxxxxxxxxxxxxxx")
	require.NoError(t, err)
	_, err = ver.Verify(context.Background(), tokenStr)
	require.Error(t, err)
}

func TestVerifier_RejectsMalformedAndAlgNone(t *testing.T) {
	ver, err := NewVerifier("x")
	require.NoError(t, err)

	_, err = ver.Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)

	headerEnc := new(jwt.Token).EncodeSegment([]byte(`{"alg":"none"}`))
	payloadEnc := new(jwt.Token).EncodeSegment([]byte(`{"sub":"u-none","exp":9999999999}`))
	_, err = ver.Verify(context.Background(), headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

func TestVerifier_RejectsTamperedPayload(t *testing.T) {
	cfg := testConfig("tamper-test-secret-32-bytes-xxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, &models.User{Sub: "user-t"}, 5*time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	require.NoError(t, err)
	parts[1] = new(jwt.Token).EncodeSegment([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))

	ver, err := NewVerifier(cfg.JWT.Secret)
	require.NoError(t, err)
	_, err = ver.Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
}

func TestVerifier_RequiresExpiry(t *testing.T) {
	secret := "no-exp-secret-32-bytes-xxxxxxxxxxx"
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte(secret))
	require.NoError(t, err)

	ver, err := NewVerifier(secret)
	require.NoError(t, err)
	_, err = ver.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrNoExpiry)
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier("")
	require.ErrorIs(t, err, ErrEmptySecret)
}
