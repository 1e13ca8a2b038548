package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"jastip/internal/config"
)

// CORS cross-origin middleware built from configuration
func CORS(cfg config.SecurityConfig) gin.HandlerFunc {
	c := cors.DefaultConfig()

	if len(cfg.CORS.AllowOrigins) > 0 {
		c.AllowOrigins = cfg.CORS.AllowOrigins
	} else {
		c.AllowAllOrigins = true
	}

	if len(cfg.CORS.AllowMethods) > 0 {
		c.AllowMethods = cfg.CORS.AllowMethods
	}

	if len(cfg.CORS.AllowHeaders) > 0 {
		c.AllowHeaders = cfg.CORS.AllowHeaders
	} else {
		c.AllowHeaders = []string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Authorization",
			"X-Requested-With",
			"Accept",
		}
	}

	// Credentials cannot be combined with a wildcard origin.
	c.AllowCredentials = cfg.CORS.AllowCredentials && !c.AllowAllOrigins
	if cfg.CORS.MaxAge > 0 {
		c.MaxAge = time.Duration(cfg.CORS.MaxAge) * time.Second
	}

	return cors.New(c)
}
