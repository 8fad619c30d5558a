package web

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-portfolio/chat-rooms/internal/chat"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Разрешаем соединения с любого источника (можно ограничить домен)
		return true
	},
}

// =========================
// ChatConnectionHandler
// /ws?room=<имя>
// =========================
// Каждое websocket-соединение — одна сессия в одной комнате.
// Session id генерируем здесь: комната рассчитывает на его уникальность.
func ChatConnectionHandler(w http.ResponseWriter, r *http.Request) {
	username, _ := r.Context().Value(ctxUserKey).(string)
	if username == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	roomName := r.URL.Query().Get("room")
	if roomName == "" {
		roomName = "lobby"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	su := chat.SessionAndUserID{
		SessionID: uuid.NewString(),
		UserID:    username,
	}

	sub, handle, users, err := Rooms.Join(roomName, su)
	if err != nil {
		// Комнаты нет — отдаём клиенту ошибку и закрываем соединение.
		// Остальных сессий это никак не касается.
		if errors.Is(err, chat.ErrRoomNotFound) {
			_ = conn.WriteJSON(frame{Type: frameError, Error: "no such room"})
		} else {
			_ = conn.WriteJSON(frame{Type: frameError, Error: "join failed"})
		}
		_ = conn.Close()
		return
	}

	s := newSession(conn, Rooms, sub, handle, username, users)
	go s.writeSocket()
	s.readSocket()
}
