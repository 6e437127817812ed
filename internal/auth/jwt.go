package auth

import (
	"errors"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeAccess = "access"

type Claims struct {
	UserID    string    `json:"sub"`
	Role      user.Role `json:"role"`
	TokenType string    `json:"typ"`
	JTI       string    `json:"jti"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of m reading time from now. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token binding principalID and role, valid for the configured TTL.
func (m *Manager) Issue(principalID string, role user.Role) (Token, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		UserID:    principalID,
		Role:      role,
		TokenType: tokenTypeAccess,
		JTI:       uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	raw, err := token.SignedString(m.secret)
	if err != nil {
		return Token{}, err
	}

	return Token{Value: raw, ExpiresAt: expiresAt}, nil
}

func (m *Manager) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Verify returns the principal embedded in tokenStr. Expired tokens yield
// apperr.KindCredentialExpired, everything else apperr.KindInvalidCredential.
func (m *Manager) Verify(tokenStr string) (user.Principal, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return user.Principal{}, &apperr.Error{Kind: apperr.KindCredentialExpired, Message: "Access token expired", Err: err}
		}
		return user.Principal{}, &apperr.Error{Kind: apperr.KindInvalidCredential, Message: "Invalid access token", Err: err}
	}

	if claims.TokenType != tokenTypeAccess {
		return user.Principal{}, apperr.New(apperr.KindInvalidCredential, "Invalid token type")
	}
	if claims.UserID == "" || !claims.Role.IsValid() {
		return user.Principal{}, apperr.New(apperr.KindInvalidCredential, "Invalid token claims")
	}

	return user.Principal{ID: claims.UserID, Role: claims.Role}, nil
}
