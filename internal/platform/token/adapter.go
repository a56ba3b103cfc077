package token

import (
	authmw "paylog/pkg/platform/middleware/auth"
)

// Adapter bridges the JWT service to the auth middleware's validator
// interface.
type Adapter struct {
	service *JWTService
}

func NewAdapter(service *JWTService) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{Account: claims.Account}, nil
}
