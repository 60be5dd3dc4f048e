package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gogotex/gogotex/backend/autosave/internal/config"
	"github.com/gogotex/gogotex/backend/autosave/internal/models"
	"github.com/gogotex/gogotex/backend/autosave/pkg/middleware"
)

var (
	ErrEmptySecret = errors.New("jwt secret is empty")
	ErrNoExpiry    = errors.New("token has no expiry")
)

// GenerateAccessToken creates a signed JWT access token for the user
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	if cfg.JWT.Secret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.Sub,
		"name":  u.Name,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// Verifier checks HS256 access tokens signed with the shared secret.
type Verifier struct {
	secret []byte
}

var _ middleware.Verifier = (*Verifier)(nil)

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses raw and validates its signature and expiry.
func (v *Verifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("verify token: unexpected claims type")
	}
	if exp, err := claims.GetExpirationTime(); err != nil || exp == nil {
		return nil, fmt.Errorf("verify token: %w", ErrNoExpiry)
	}
	return verifiedToken{claims: claims}, nil
}

type verifiedToken struct {
	claims jwt.MapClaims
}

func (t verifiedToken) Claims(v interface{}) error {
	out, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims target %T", v)
	}
	m := make(map[string]interface{}, len(t.claims))
	for k, val := range t.claims {
		m[k] = val
	}
	*out = m
	return nil
}
