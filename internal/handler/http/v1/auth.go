package v1

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/pkg/signature"
)

const maxSignedBodyBytes = 1 << 20

// APIKeyAuthMiddleware - middleware для аутентификации по API-ключу
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if apiKey == "" {
			// Браузерный websocket не умеет задавать заголовки
			apiKey = c.Query("api_key")
		}

		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		isValid := false
		for _, key := range cfg.APIKeys {
			if key == apiKey {
				isValid = true
				break
			}
		}

		if !isValid {
			log.Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Next()
	}
}

// SignatureMiddleware проверяет HMAC-SHA256 подпись тела в X-Signature.
// С пустым secret проверка отключена.
func SignatureMiddleware(secret string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		sig := c.GetHeader("X-Signature")
		if sig == "" {
			log.Warn("Signature missing from ingestion request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature required"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBodyBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !signature.Verify(body, secret, sig) {
			log.Warn("Invalid signature on ingestion request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		c.Next()
	}
}
