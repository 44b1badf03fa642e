package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/Manimaran10/task-manager/domain"
)

const defaultTokenTTL = 24 * time.Hour

// Auth issues and validates the HS256 bearer tokens used for both REST calls
// and the push-channel handshake.
type Auth struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewAuth creates an Auth around the shared signing secret. A non-positive
// ttl falls back to 24h.
func NewAuth(secret []byte, ttl time.Duration) *Auth {
	if len(secret) == 0 {
		panic("api.NewAuth: empty secret")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Auth{
		secret: secret,
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		now:    time.Now,
	}
}

// IssueToken signs a token carrying the user identity.
func (a *Auth) IssueToken(userID, email string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(a.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", fmt.Errorf("missing authorization header: %w", domain.ErrAuthenticationFailed)
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("bad auth header: %w", domain.ErrAuthenticationFailed)
	}
	return a.UserIDFromToken(parts[1])
}

// UserIDFromToken validates a raw bearer token and returns the subject.
func (a *Auth) UserIDFromToken(tokenStr string) (string, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return "", fmt.Errorf("malformed token: %w", domain.ErrAuthenticationFailed)
	}
	token, err := a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrAuthenticationFailed)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims: %w", domain.ErrAuthenticationFailed)
	}
	if !claims.VerifyExpiresAt(a.now().Unix(), true) {
		return "", fmt.Errorf("token expired: %w", domain.ErrAuthenticationFailed)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("missing sub: %w", domain.ErrAuthenticationFailed)
	}
	return sub, nil
}

// HashPassword derives the stored credential from a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
