package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingOrg   = errors.New("token has no organization")
)

// Identity is who a request acts for. The editor only needs the
// organization; the subject is kept for logging.
type Identity struct {
	Subject        string `json:"subject"`
	OrganizationID string `json:"organizationId"`
}

// Claims are the JWT claims issued by the host application.
type Claims struct {
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

type Service struct {
	jwtSecret  []byte
	disabled   bool
	defaultOrg string
}

type Options struct {
	JWTSecret string
	// Disabled skips token checks and attributes every request to DefaultOrg.
	Disabled   bool
	DefaultOrg string
}

func NewService(opts Options) *Service {
	return &Service{
		jwtSecret:  []byte(opts.JWTSecret),
		disabled:   opts.Disabled,
		defaultOrg: opts.DefaultOrg,
	}
}

func (s *Service) Disabled() bool {
	return s.disabled
}

func (s *Service) ValidateToken(tokenString string) (Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.OrganizationID == "" {
		return Identity{}, ErrMissingOrg
	}
	return Identity{Subject: claims.Subject, OrganizationID: claims.OrganizationID}, nil
}

// IssueToken signs a token for subject in org. The server never issues
// tokens itself; the CLI and tests use this.
func (s *Service) IssueToken(subject, org string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OrganizationID: org,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
