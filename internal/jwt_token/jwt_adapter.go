package jwttoken

import (
	"provenance/internal/platform/middleware"
	"provenance/pkg/domain"
)

// JWTServiceAdapter exposes JWTService through the middleware validator
// interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (domain.Identity, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Caller(), nil
}

var _ middleware.JWTValidator = (*JWTServiceAdapter)(nil)
