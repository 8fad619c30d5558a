package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-portfolio/chat-rooms/internal/auth"
	"github.com/go-portfolio/chat-rooms/internal/chat"
	"github.com/go-portfolio/chat-rooms/internal/user"
)

// =========================
// Глобальные сервисы (инжектируются из app)
// =========================
var (
	Rooms      *chat.RoomManager // Справочник комнат
	Users      user.UserStore    // Хранилище пользователей
	CookieName = "auth"          // Имя cookie для хранения JWT
)

// =========================
// Регистрация пользователя
// POST /api/register
// тело JSON { "username": "...", "password": "..." }
// =========================
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)

	var cred user.Credentials
	// Декодируем JSON тело запроса
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid json"})
		return
	}

	if err := Users.Register(cred.Username, cred.Password); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "registered"})
}

// =========================
// Логин пользователя
// POST /api/login
// тело JSON { "username": "...", "password": "..." }
// =========================
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)

	var cred user.Credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid json"})
		return
	}

	// Проверяем логин/пароль
	if !Users.Authenticate(cred.Username, cred.Password) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
		return
	}

	// Генерируем JWT
	token, err := auth.IssueJWT(cred.Username)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "failed to issue token"})
		return
	}

	// Устанавливаем cookie с токеном
	cookie := http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,  // недоступно JS
		Secure:   false, // на HTTPS ставить true
		SameSite: http.SameSiteLaxMode,
		MaxAge:   24 * 60 * 60, // 1 день
	}
	http.SetCookie(w, &cookie)

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// =========================
// Список комнат
// GET /api/rooms
// =========================
func RoomsHandler(w http.ResponseWriter, r *http.Request) {
	withJSON(w)
	_ = json.NewEncoder(w).Encode(Rooms.Metadata())
}
