package middleware

import (
	"net/http"
	"strings"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证中间件，校验 Bearer token 并把操作人写入上下文
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头获取token
		authHeader := c.GetHeader("Authorization")

		utils.Logger.Debug().
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Str("authorization", getShortAuthHeader(authHeader)).
			Msg("验证请求")

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if !strings.HasPrefix(authHeader, "Bearer ") || token == "" {
			abortUnauthorized(c, "未授权访问", "MISSING_TOKEN")
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			utils.Logger.Warn().Err(err).Msg("Token验证失败")
			abortUnauthorized(c, "无效的token: "+err.Error(), "INVALID_TOKEN")
			return
		}

		actor, err := utils.ActorFromClaims(claims)
		if err != nil {
			utils.Logger.Warn().Interface("claims", claims).Msg("Token负载缺少必要字段")
			abortUnauthorized(c, "Token缺少必要字段", "INVALID_TOKEN")
			return
		}

		// 将用户信息存储到上下文
		c.Set(utils.ContextUserKey, actor)

		utils.Logger.Debug().
			Str("id", actor.ID).
			Str("role", string(actor.Role)).
			Msg("验证成功")

		c.Next()
	}
}

// RequireRoles 角色校验，超级管理员总是放行
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := utils.GetActor(c)
		if err != nil {
			abortUnauthorized(c, "用户未认证", "UNAUTHENTICATED")
			return
		}

		if !utils.HasRole(actor.Role, roles...) {
			utils.Logger.Info().
				Str("id", actor.ID).
				Str("role", string(actor.Role)).
				Str("path", c.Request.URL.Path).
				Msg("权限不足")

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "权限不足",
				"code":    "INSUFFICIENT_PERMISSION",
			})
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// getShortAuthHeader 获取截断的授权头，保护敏感信息
func getShortAuthHeader(header string) string {
	if len(header) > 15 {
		return header[:15] + "..."
	}
	return header
}
