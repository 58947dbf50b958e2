package v1

import (
	"net/http"
	"strings"

	"github.com/civicpulse/incident_reporting_system/internal/config"
	"github.com/civicpulse/incident_reporting_system/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ctxUsername = "session_username"
	ctxIsAdmin  = "session_is_admin"

	sessionCookie = "session"
)

// SessionAuthMiddleware - middleware проверки сессионного токена.
// Токен принимается из заголовка Authorization: Bearer или из cookie.
func SessionAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if token == "" {
			if cookie, err := c.Cookie(sessionCookie); err == nil {
				token = cookie
			}
		}

		if token == "" {
			log.Warn("Session token missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Status: "error", Detail: "session required"})
			return
		}

		claims, err := service.ParseSession(token, cfg.SessionSecret)
		if err != nil {
			log.WithError(err).Warn("Invalid session token provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Status: "error", Detail: "invalid session"})
			return
		}

		c.Set(ctxUsername, claims.Subject)
		c.Set(ctxIsAdmin, claims.Admin)
		c.Next()
	}
}

// AdminOnlyMiddleware пропускает только сессии администраторов.
// Должен стоять после SessionAuthMiddleware.
func AdminOnlyMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ctxIsAdmin) {
			log.WithField("username", c.GetString(ctxUsername)).Warn("Non-admin session on admin route")
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Status: "error", Detail: "admin access required"})
			return
		}
		c.Next()
	}
}
