// Package token issues and validates the bearer tokens the execution
// environment uses to assert caller identity. The ledger itself never parses
// tokens; it only sees the verified account address.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "paylog/pkg/domain-errors"
)

// Claims carries the authenticated account identity.
//
// Actor is set when a token was obtained through delegation (one party acting
// for another). The ledger only accepts direct account identities, so
// validation rejects any token that carries an actor.
type Claims struct {
	Account string `json:"account"`
	Actor   string `json:"actor,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken signs a token asserting the given account identity. Used by
// operator tooling and tests; production deployments typically mint tokens in
// the surrounding platform.
func (s *JWTService) GenerateToken(account string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Account: account,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// GenerateDelegatedToken signs a token where actor acts on behalf of account.
// Such tokens are always rejected by ValidateToken; the helper exists so tests
// can prove the rejection path.
func (s *JWTService) GenerateDelegatedToken(account, actor string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Account: account,
		Actor:   actor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken verifies the signature and returns the claims. Tokens carrying
// an actor (delegated callers) are rejected outright.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Account == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no account identity")
	}
	if claims.Actor != "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "delegated callers are not accepted")
	}
	return claims, nil
}
