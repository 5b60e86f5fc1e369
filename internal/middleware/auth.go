package middleware

import (
	"errors"
	"net/http"
	"strings"

	"tokenizermanager/internal/repository"
	"tokenizermanager/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
)

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// AdminAuth 校验 Bearer Token 并要求管理员身份
func AdminAuth(jwtService *service.JWTService, users repository.UserRepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "缺少 Authorization 头")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
			abort(c, http.StatusUnauthorized, "Authorization 格式错误")
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			msg := "Token 验证失败"
			if errors.Is(err, service.ErrExpiredToken) {
				msg = err.Error()
			}
			abort(c, http.StatusUnauthorized, msg)
			return
		}

		user, err := users.GetByID(claims.UserID)
		if err != nil || user == nil {
			abort(c, http.StatusUnauthorized, "用户不存在")
			return
		}
		if !user.IsAdmin {
			abort(c, http.StatusForbidden, "需要管理员权限")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Next()
	}
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}
