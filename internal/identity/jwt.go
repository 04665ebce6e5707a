package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims the marketplace identity service issues.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig holds the shared-secret configuration for token validation.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// JWTVerifier validates HS256 tokens issued by the identity service.
type JWTVerifier struct {
	cfg JWTConfig
}

// NewJWTVerifier builds a verifier for the given config.
func NewJWTVerifier(cfg JWTConfig) *JWTVerifier {
	return &JWTVerifier{cfg: cfg}
}

// Verify parses and validates a token and returns its principal.
func (v *JWTVerifier) Verify(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.cfg.Secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, fmt.Errorf("invalid token claims")
	}

	if v.cfg.Issuer != "" && claims.Issuer != v.cfg.Issuer {
		return Principal{}, fmt.Errorf("invalid issuer")
	}
	if v.cfg.Audience != "" {
		valid := false
		for _, aud := range claims.Audience {
			if aud == v.cfg.Audience {
				valid = true
				break
			}
		}
		if !valid {
			return Principal{}, fmt.Errorf("invalid audience")
		}
	}

	return Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// SignToken issues a token for the given principal. Used by tests and
// local tooling; production tokens come from the identity service.
func SignToken(cfg JWTConfig, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   p.UserID,
		Username: p.Username,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}
