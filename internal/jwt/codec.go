package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("jwt: invalid token")
	ErrEmptySecret  = errors.New("jwt: empty secret")
)

// AccessClaims: {sub, tenant, role, iat, exp}.
type AccessClaims struct {
	Tenant string          `json:"tenant"`
	Role   repository.Role `json:"role"`
	jwtv5.RegisteredClaims
}

// UserID parsea sub como UUID.
func (c AccessClaims) UserID() (uuid.UUID, error) { return uuid.Parse(c.Subject) }

// RefreshClaims: {sub, jti, iat, exp}.
type RefreshClaims struct {
	jwtv5.RegisteredClaims
}

func (c RefreshClaims) UserID() (uuid.UUID, error) { return uuid.Parse(c.Subject) }
func (c RefreshClaims) TokenID() (uuid.UUID, error) { return uuid.Parse(c.ID) }

// Refresh es un refresh token recién firmado junto con lo que hay que persistir.
type Refresh struct {
	Token     string
	ID        uuid.UUID
	ExpiresAt time.Time
}

// Codec firma y valida tokens HS256. Access y refresh usan secretos distintos,
// así un token de un tipo nunca valida como el otro.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Now es inyectable para tests; nil => time.Now.
	Now func() time.Time
}

// NewCodec crea un Codec. TTL <= 0 usa los defaults.
func NewCodec(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, ErrEmptySecret
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Codec{
		accessSecret:  append([]byte(nil), accessSecret...),
		refreshSecret: append([]byte(nil), refreshSecret...),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}, nil
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// MintAccess emite un access token para (user, tenant, role).
func (c *Codec) MintAccess(userID uuid.UUID, tenant string, role repository.Role) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.AccessTTL)
	claims := AccessClaims{
		Tenant: tenant,
		Role:   role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign access: %w", err)
	}
	return signed, exp, nil
}

// MintRefresh emite un refresh token con un jti nuevo.
func (c *Codec) MintRefresh(userID uuid.UUID) (Refresh, error) {
	now := c.now()
	exp := now.Add(c.RefreshTTL)
	jti := uuid.New()
	claims := RefreshClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   userID.String(),
			ID:        jti.String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return Refresh{}, fmt.Errorf("jwt: sign refresh: %w", err)
	}
	return Refresh{Token: signed, ID: jti, ExpiresAt: exp}, nil
}

// ParseAccess valida firma y exp de un access token.
func (c *Codec) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, c.accessSecret); err != nil {
		return nil, err
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() || claims.Tenant == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh valida firma y exp de un refresh token. sub y jti deben ser UUIDs.
func (c *Codec) ParseRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.refreshSecret); err != nil {
		return nil, err
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	if _, err := claims.TokenID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(token string, claims jwtv5.Claims, secret []byte) error {
	keyfunc := func(*jwtv5.Token) (any, error) { return secret, nil }
	tok, err := jwtv5.ParseWithClaims(token, claims, keyfunc,
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
