package llm

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ServiceTokenSigner mints HS256 tokens identifying the sentinel to an
// internal model gateway.
type ServiceTokenSigner struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	clock    func() time.Time
}

// NewServiceTokenSigner creates a signer. Tokens live for one minute.
func NewServiceTokenSigner(secret []byte, issuer, audience string) (*ServiceTokenSigner, error) {
	if len(secret) < 32 {
		return nil, errors.New("service token secret must be at least 32 bytes")
	}
	return &ServiceTokenSigner{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      time.Minute,
		clock:    time.Now,
	}, nil
}

// Sign returns a fresh token.
func (s *ServiceTokenSigner) Sign() (string, error) {
	now := s.clock().UTC()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(), // JTI
		Issuer:    s.issuer,
		Subject:   "pattern-sentinel",
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
