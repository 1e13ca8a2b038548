package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iutils "jastip/internal/utils"
	"jastip/pkg/utils"
)

const (
	// AuthorizationHeader header carrying the bearer token
	AuthorizationHeader = "Authorization"
	// BearerPrefix expected token prefix
	BearerPrefix = "Bearer "
	// SellerIDKey context key for the authenticated seller
	SellerIDKey = "seller_id"
	// SellerNameKey context key for the seller display name
	SellerNameKey = "seller_name"
)

// SellerAuth authenticates seller requests with a bearer JWT
func SellerAuth(manager *iutils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			utils.Error(c, utils.CodeUnauthorized, "Missing authorization header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			utils.Error(c, utils.CodeUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, BearerPrefix)
		if token == "" {
			utils.Error(c, utils.CodeUnauthorized, "Missing token")
			c.Abort()
			return
		}

		claims, err := manager.ValidateToken(token)
		if err != nil {
			utils.Error(c, utils.CodeUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		c.Set(SellerIDKey, claims.SellerID)
		c.Set(SellerNameKey, claims.Name)

		c.Next()
	}
}

// GetSellerID returns the authenticated seller from the request context
func GetSellerID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(SellerIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
