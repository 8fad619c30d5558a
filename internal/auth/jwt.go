package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Secret — глобальный секрет для подписи JWT-токенов.
// Устанавливается один раз при старте сервера.
var Secret []byte

// tokenTTL — срок жизни токена.
const tokenTTL = 24 * time.Hour

// InitSecret устанавливает секрет для JWT.
func InitSecret(secret []byte) {
	Secret = secret
}

// IssueJWT создаёт JWT-токен для указанного username.
// В claims кладём стандартные поля: "sub" (username), "iat", "exp".
func IssueJWT(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(Secret)
}

// ParseJWT проверяет подпись и срок действия токена и возвращает username.
// Принимаем только HMAC: токен с другим методом подписи — подделка.
func ParseJWT(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return Secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("missing subject")
	}
	return sub, nil
}
