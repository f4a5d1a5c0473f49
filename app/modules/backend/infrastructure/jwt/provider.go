// Package backendjwt signs and validates the session tokens that guard backend write endpoints.
package backendjwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "arena-backend"

// Provider issues wallet session tokens.
type Provider interface {
	GenerateToken(wallet string, ttl time.Duration) (string, error)
	// ValidateToken returns the wallet the token was issued to.
	ValidateToken(token string) (string, error)
}

type walletClaims struct {
	jwt.RegisteredClaims
	Wallet string `json:"wallet"`
}

type provider struct {
	secret []byte
}

func NewProvider(secret string) Provider {
	return &provider{secret: []byte(secret)}
}

func (p *provider) GenerateToken(wallet string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &walletClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			Subject:   wallet,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Wallet: wallet,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (p *provider) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &walletClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return p.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return "", ErrInvalidSignature
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*walletClaims)
	if !ok || !token.Valid || claims.Wallet == "" {
		return "", ErrInvalidToken
	}
	return claims.Wallet, nil
}
