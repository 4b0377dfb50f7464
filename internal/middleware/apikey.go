package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyConfig configures API key authentication.
type APIKeyConfig struct {
	// ValidKeys maps valid API keys to their descriptions
	ValidKeys map[string]string
	// HeaderName is the API key header (default: X-API-Key)
	HeaderName string
	// Optional allows requests without a key to proceed unprivileged
	Optional bool
}

var DefaultAPIKeyConfig = APIKeyConfig{
	HeaderName: "X-API-Key",
	Optional:   false,
}

type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyConfig.HeaderName
	}
	return &APIKey{config: config}
}

// Middleware returns a gin handler enforcing API key authentication.
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(ak.config.HeaderName)

		// Fall back to the query parameter
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		// And to the Authorization header with a Bearer scheme
		if apiKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			if ak.config.Optional {
				c.Set("api_key_validated", false)
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "API key required. Pass it via the X-API-Key header, api_key query parameter or Authorization: Bearer",
			})
			c.Abort()
			return
		}

		// Constant-time comparison against the configured keys
		valid := false
		var keyName string
		for validKey, name := range ak.config.ValidKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				valid = true
				keyName = name
				break
			}
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set("api_key_validated", true)
		c.Set("api_key_name", keyName)
		c.Set("api_key", apiKey)

		c.Next()
	}
}

// RequireAPIKey builds a middleware that rejects requests without a valid key.
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	ak := NewAPIKey(APIKeyConfig{
		ValidKeys:  validKeys,
		HeaderName: "X-API-Key",
		Optional:   false,
	})
	return ak.Middleware()
}

// OptionalAPIKey builds a middleware that accepts but does not require a key.
func OptionalAPIKey(validKeys map[string]string) gin.HandlerFunc {
	ak := NewAPIKey(APIKeyConfig{
		ValidKeys:  validKeys,
		HeaderName: "X-API-Key",
		Optional:   true,
	})
	return ak.Middleware()
}

// GetAPIKeyFromContext extracts the API key from the request context.
func GetAPIKeyFromContext(c *gin.Context) (string, bool) {
	key, exists := c.Get("api_key")
	if !exists {
		return "", false
	}
	return key.(string), true
}

// IsAPIKeyValidated reports whether the request carried a valid API key.
func IsAPIKeyValidated(c *gin.Context) bool {
	validated, exists := c.Get("api_key_validated")
	if !exists {
		return false
	}
	return validated.(bool)
}
