package utils

import (
	"fmt"
	"time"

	"github.com/BerniceZTT/leadops/models"

	"github.com/dgrijalva/jwt-go"
)

var jwtSecret = []byte("your-secret-key")

// tokenTTL 令牌有效期
const tokenTTL = 30 * 24 * time.Hour

// SetJWTSecret 设置签名密钥
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateToken 生成JWT令牌
func GenerateToken(actor models.Actor) (string, error) {
	if actor.ID == "" || !actor.Role.IsValid() {
		return "", fmt.Errorf("无效的用户信息")
	}

	Logger.Debug().
		Str("id", actor.ID).
		Str("username", actor.Name).
		Str("role", string(actor.Role)).
		Msg("开始生成token")

	// 创建JWT Claims
	claims := jwt.MapClaims{
		"id":       actor.ID,
		"username": actor.Name,
		"role":     string(actor.Role),
		"exp":      time.Now().Add(tokenTTL).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		Logger.Error().Err(err).Msg("生成token失败")
		return "", err
	}

	return tokenString, nil
}

// ParseToken 解析和验证JWT令牌
func ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	// 验证token并提取claims
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("无效的token")
}

// HasRole 检查角色是否在允许列表中，超级管理员总是允许
func HasRole(role models.UserRole, allowed ...models.UserRole) bool {
	if role == models.UserRoleSUPER_ADMIN {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
