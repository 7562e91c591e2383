// Package jwtauth issues and validates the bearer tokens that identify a
// principal to the marketplace API. Token issuance here is a thin dev/test
// path; production deployments exchange wallet signatures for tokens in the
// surrounding application, which is outside this core.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
)

// Claims carries the acting principal.
type Claims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken issues a signed token for the given principal.
func (s *Service) GenerateToken(principal id.Principal, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Principal: string(principal),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning the acting principal.
func (s *Service) ValidateToken(tokenString string) (id.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeNotAuthorized, "invalid token")
	}
	if !token.Valid || claims.Principal == "" {
		return "", dErrors.New(dErrors.CodeNotAuthorized, "invalid token")
	}
	return id.Principal(claims.Principal), nil
}
