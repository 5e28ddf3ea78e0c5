package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APIKeyPrefix marks secrets issued by this service.
const APIKeyPrefix = "adg_"

const apiKeyEntropyBytes = 32

// ErrInvalidSessionToken is returned when a session token fails signature or claim checks.
var ErrInvalidSessionToken = errors.New("invalid session token")

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// NewAPIKeySecret returns a fresh API key secret and the short display prefix stored beside its hash.
func NewAPIKeySecret() (secret string, displayPrefix string, err error) {
	body, err := GenerateSecureToken(apiKeyEntropyBytes)
	if err != nil {
		return "", "", err
	}
	secret = APIKeyPrefix + body
	return secret, secret[:len(APIKeyPrefix)+6], nil
}

// LooksLikeAPIKey reports whether value carries the issued key prefix.
func LooksLikeAPIKey(value string) bool {
	return strings.HasPrefix(value, APIKeyPrefix) && len(value) > len(APIKeyPrefix)
}

// SessionClaims are embedded in signed session tokens.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SessionSigner issues and parses HS256 session tokens.
type SessionSigner struct {
	secret []byte
	issuer string
}

// NewSessionSigner builds a signer; the secret must be at least 32 bytes.
func NewSessionSigner(secret, issuer string) (*SessionSigner, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	return &SessionSigner{secret: []byte(secret), issuer: issuer}, nil
}

// Sign returns a compact JWT for the given session.
func (s *SessionSigner) Sign(sessionID, userID, email string, issuedAt, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		SessionID: sessionID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates the token signature, issuer and expiry and returns its claims.
func (s *SessionSigner) Parse(raw string, now time.Time) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	return claims, nil
}
