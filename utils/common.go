package utils

import (
	"fmt"

	"github.com/BerniceZTT/leadops/models"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

// ContextUserKey 认证中间件写入gin上下文的键
const ContextUserKey = "user"

// ActorFromClaims 从JWT负载构造操作人
func ActorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return models.Actor{}, fmt.Errorf("无效的用户ID")
	}

	role, ok := claims["role"].(string)
	if !ok || !models.UserRole(role).IsValid() {
		return models.Actor{}, fmt.Errorf("无效的用户角色")
	}

	username, _ := claims["username"].(string)

	return models.Actor{
		ID:   id,
		Name: username,
		Role: models.UserRole(role),
	}, nil
}

// GetActor 获取当前请求的操作人
func GetActor(c *gin.Context) (models.Actor, error) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Actor{}, fmt.Errorf("GetActor 未授权访问")
	}

	switch v := value.(type) {
	case models.Actor:
		return v, nil
	case jwt.MapClaims:
		return ActorFromClaims(v)
	default:
		return models.Actor{}, fmt.Errorf("无法解析用户信息: %T", value)
	}
}
