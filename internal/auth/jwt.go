package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrInvalidToken is returned for tokens that fail signature, method or
// expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims identify the user in Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the id of the authenticated user.
func (c *Claims) UserID() string { return c.Subject }

// Manager signs and validates HS256 tokens with a shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a token for userID that expires after the manager's TTL.
func (m *Manager) GenerateToken(userID string) (string, error) {
	return m.GenerateTokenWithExpiry(userID, m.now().Add(m.ttl))
}

// GenerateTokenWithExpiry creates a token with a custom expiry.
func (m *Manager) GenerateTokenWithExpiry(userID string, expiry time.Time) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	return signed, errors.Wrap(err, "failed to sign token")
}

// ValidateToken checks the signature and expiry and returns the claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
