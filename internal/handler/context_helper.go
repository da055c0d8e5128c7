package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/geo-checkin-api/internal/middleware"
	"github.com/noah-isme/geo-checkin-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}

func callerID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
