package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token kinds embedded in the "type" claim so that a candidate token
// cannot be replayed against admin endpoints and vice versa.
const (
	TokenKindUser      = "user"
	TokenKindAdmin     = "admin"
	TokenKindCandidate = "candidate"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carried by every access token issued by this service
type Claims struct {
	Kind string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager signs and parses access tokens. Constructed once from the
// loaded configuration and shared by the auth middleware and handlers.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager 创建令牌管理器
func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl}
}

// Issue creates a signed token whose subject identifies the principal
// (user e-mail, admin id or candidate id depending on kind).
func (m *TokenManager) Issue(subject, kind string) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// IssueForID issues a token for a numeric principal id (admins and
// candidates)
func (m *TokenManager) IssueForID(id uint, kind string) (string, error) {
	return m.Issue(strconv.FormatUint(uint64(id), 10), kind)
}

// Parse validates the signature and expiry and returns the claims
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
