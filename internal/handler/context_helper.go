package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cvbeltran/vschool-api/internal/middleware"
	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func scopeFromContext(c *gin.Context) models.TenantScope {
	return claimsFromContext(c).Scope()
}

func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if claims := claimsFromContext(c); claims != nil {
		actor.UserID = claims.UserID
	}
	return actor
}
