package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SellerClaims JWT claims for seller sessions
type SellerClaims struct {
	SellerID uint64 `json:"seller_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// JWTManager JWT manager
type JWTManager struct {
	secretKey []byte
	issuer    string
	expire    time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey, issuer string, expire time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expire:    expire,
	}
}

// GenerateToken generates a seller session token
func (m *JWTManager) GenerateToken(sellerID uint64, name string) (string, error) {
	now := time.Now()
	claims := &SellerClaims{
		SellerID: sellerID,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expire)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken validates a token and returns its claims
func (m *JWTManager) ValidateToken(tokenString string) (*SellerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SellerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SellerClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
