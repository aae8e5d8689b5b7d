// Package jwt signs and verifies the access and refresh tokens handed to API clients.
package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is stamped into every token this service signs.
const Issuer = "manyame-permits"

// Audiences keep an access token from being replayed as a refresh token and vice versa.
const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// AccessClaims identify the user behind an API request
type AccessClaims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims identify one refresh token. ID carries the token id.
type RefreshClaims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Signer issues tokens with separate secrets and lifetimes for each kind
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewSigner creates a Signer
func NewSigner(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (s *Signer) registered(audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

// Access signs an access token for the given user
func (s *Signer) Access(userID uint, username, role string) (Issued, error) {
	claims := &AccessClaims{
		UserID:           userID,
		Username:         username,
		Role:             role,
		RegisteredClaims: s.registered(audienceAccess, s.accessTTL),
	}
	claims.Subject = strconv.FormatUint(uint64(userID), 10)
	return sign(claims, s.accessSecret)
}

// Refresh signs a refresh token with a random id
func (s *Signer) Refresh(userID uint) (Issued, error) {
	claims := &RefreshClaims{
		UserID:           userID,
		RegisteredClaims: s.registered(audienceRefresh, s.refreshTTL),
	}
	claims.ID = uuid.NewString()
	return sign(claims, s.refreshSecret)
}

// ParseAccess verifies an access token
func (s *Signer) ParseAccess(token string) (*AccessClaims, error) {
	return parse(token, s.accessSecret, audienceAccess, &AccessClaims{})
}

// ParseRefresh verifies a refresh token
func (s *Signer) ParseRefresh(token string) (*RefreshClaims, error) {
	return parse(token, s.refreshSecret, audienceRefresh, &RefreshClaims{})
}

func sign(claims jwt.Claims, secret []byte) (Issued, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Issued{}, err
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ExpiresAt: exp.Time}, nil
}

func parse[C jwt.Claims](token string, secret []byte, audience string, claims C) (C, error) {
	var zero C
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return zero, ErrTokenExpired
		}
		return zero, ErrTokenInvalid
	}
	if !parsed.Valid {
		return zero, ErrTokenInvalid
	}
	return claims, nil
}
