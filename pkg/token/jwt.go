// Package token 提供了用于生成和验证 WebSocket 会话令牌的功能。
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager 负责管理查询会话令牌的生成和验证。
// 流式查询先通过 HTTP 换取短时令牌，再用令牌建立 WebSocket 连接，
// 避免在升级请求的 URL 之外传递凭据。
type JWTManager struct {
	secretKey []byte
	tokenDur  time.Duration
}

// SessionClaims 定义了会话令牌中携带的数据。
type SessionClaims struct {
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
func NewJWTManager(secret string, expireMinutes int) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		tokenDur:  time.Duration(expireMinutes) * time.Minute,
	}
}

// GenerateSessionToken 生成一个带随机会话 ID 的新令牌。
func (m *JWTManager) GenerateSessionToken() (string, string, error) {
	sessionID := GenerateRandomString(16)
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", "", err
	}
	return signed, sessionID, nil
}

// VerifyToken 验证给定的令牌字符串，有效时返回 SessionClaims。
func (m *JWTManager) VerifyToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateRandomString 生成指定字节长度的随机十六进制字符串。
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
