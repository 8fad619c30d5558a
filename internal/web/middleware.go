package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-portfolio/chat-rooms/internal/auth"
)

type ctxKey string

const ctxUserKey ctxKey = "user" // Ключ для хранения имени пользователя в контексте запроса

// =========================
// AuthMiddleware проверяет cookie JWT
// =========================
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing auth cookie"})
			return
		}

		userName, err := auth.ParseJWT(c.Value)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
			return
		}

		// Сохраняем username в контекст запроса
		ctx := context.WithValue(r.Context(), ctxUserKey, userName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
