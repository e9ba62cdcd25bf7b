package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khurram-Shahid09/CourseMat/internal/middleware"
	"github.com/khurram-Shahid09/CourseMat/internal/models"
	"github.com/khurram-Shahid09/CourseMat/internal/service"
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

// actorFromContext maps the authenticated JWT claims to a service actor.
// Returns the zero actor when the request carries no claims.
func actorFromContext(c *gin.Context) service.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{
		UserID:    claims.UserID,
		Role:      claims.Role,
		StudentID: claims.StudentID,
		TeacherID: claims.TeacherID,
	}
}
