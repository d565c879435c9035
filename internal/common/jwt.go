package common

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims represents the data stored in a wall token.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens for admins and visitors.
type TokenIssuer struct {
	secret     []byte
	adminTTL   time.Duration
	visitorTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, adminTTL, visitorTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		adminTTL:   adminTTL,
		visitorTTL: visitorTTL,
		now:        time.Now,
	}, nil
}

func (ti *TokenIssuer) GenerateToken(role Role, subject string, ttl time.Duration) (string, time.Time, error) {
	now := ti.now()
	expires := now.Add(ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "memorywall",
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (ti *TokenIssuer) AdminToken(username string) (string, time.Time, error) {
	return ti.GenerateToken(RoleAdmin, username, ti.adminTTL)
}

// VisitorToken issues a token whose subject is a fresh random actor id.
func (ti *TokenIssuer) VisitorToken() (string, string, error) {
	actorID := uuid.NewString()
	token, _, err := ti.GenerateToken(RoleVisitor, actorID, ti.visitorTTL)
	if err != nil {
		return "", "", err
	}
	return token, actorID, nil
}

func (ti *TokenIssuer) ValidToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
