package web

import (
	"log"
	"strings"
	"time"

	"github.com/go-portfolio/chat-rooms/internal/chat"

	"github.com/gorilla/websocket"
)

// Типы кадров, уходящих клиенту.
const (
	frameEvent   = "event"   // живое событие комнаты
	frameHistory = "history" // событие из реплея истории
	frameUsers   = "users"   // снимок уникальных пользователей на момент входа
	frameLagged  = "lagged"  // клиент отстал, часть событий потеряна
	frameError   = "error"
)

// frame — исходящий кадр websocket-соединения.
type frame struct {
	Type    string      `json:"type"`
	Event   *chat.Event `json:"event,omitempty"`
	Users   []string    `json:"users,omitempty"`
	Dropped uint64      `json:"dropped,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// session связывает одно websocket-соединение с одной сессией комнаты.
// Читающая горутина декодирует запросы клиента в вызовы справочника,
// пишущая — качает live-канал и канал реплея в сокет.
type session struct {
	conn    *websocket.Conn
	rooms   *chat.RoomManager
	sub     *chat.Subscription
	handle  chat.UserSessionHandle
	user    string        // handle хранит только session id, user id держим рядом
	users   []string      // снимок на момент входа, отправляется первым кадром
	closeCh chan struct{} // Канал для безопасного закрытия сессии
}

func newSession(conn *websocket.Conn, rooms *chat.RoomManager, sub *chat.Subscription, handle chat.UserSessionHandle, user string, users []string) *session {
	return &session{
		conn:    conn,
		rooms:   rooms,
		sub:     sub,
		handle:  handle,
		user:    user,
		users:   users,
		closeCh: make(chan struct{}),
	}
}

// readSocket читает входящие кадры клиента и превращает их в операции
// справочника комнат. При завершении чтения сессия обязана выйти из
// комнаты ровно один раз — автоматического выхода по обрыву канала нет.
func (s *session) readSocket() {
	defer func() {
		// Ошибка здесь означает двойной выход — баг слоя соединений,
		// молчать о нём нельзя.
		if err := s.rooms.Leave(s.handle); err != nil {
			log.Printf("leave %s/%s: %v", s.handle.Room(), s.handle.SessionID(), err)
		}
		close(s.closeCh)
		s.conn.Close()
	}()

	// Настройка лимита и времени ожидания чтения
	s.conn.SetReadLimit(512) // Максимальный размер сообщения
	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error { // Обновление таймаута при получении PONG
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var incoming struct {
			Type string `json:"type"` // "message" (по умолчанию) или "history"
			Text string `json:"text"`
		}
		if err := s.conn.ReadJSON(&incoming); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error: %v", err)
			}
			break // Завершаем цикл при ошибке
		}

		switch incoming.Type {
		case "history":
			// Запрос реплея: история придёт в персональный канал,
			// остальные сессии её не увидят.
			if err := s.rooms.ReplayHistory(s.handle.Room(), s.handle.SessionID()); err != nil {
				log.Printf("replay %s/%s: %v", s.handle.Room(), s.handle.SessionID(), err)
			}
		default:
			text := strings.TrimSpace(incoming.Text)
			if text == "" {
				continue // Игнорируем пустые сообщения
			}
			if err := s.rooms.PostMessage(s.handle.Room(), s.user, text); err != nil {
				log.Printf("post %s: %v", s.handle.Room(), err)
			}
		}
	}
}

// writeSocket отправляет кадры клиенту и поддерживает heartbeat (PING).
// Закрытый live-канал означает, что сессия вышла из комнаты — насос
// завершает работу.
func (s *session) writeSocket() {
	ticker := time.NewTicker(45 * time.Second) // Периодический PING для проверки соединения
	defer func() {
		ticker.Stop()
		s.conn.Close() // Закрываем соединение при завершении
	}()

	// Первым кадром — кто сейчас в комнате
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteJSON(frame{Type: frameUsers, Users: s.users}); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-s.sub.Live:
			if !ok {
				return // Подписка закрыта после выхода из комнаты
			}
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteJSON(frame{Type: frameEvent, Event: &ev}); err != nil {
				return
			}
			// Если буфер переполнялся — говорим клиенту запросить историю,
			// по Seq он увидит, где пропуск.
			if n := s.sub.Dropped(); n > 0 {
				if err := s.conn.WriteJSON(frame{Type: frameLagged, Dropped: n}); err != nil {
					return
				}
			}

		case ev, ok := <-s.sub.History:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteJSON(frame{Type: frameHistory, Event: &ev}); err != nil {
				return
			}

		case <-ticker.C:
			// Отправляем PING каждые 45 секунд
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.closeCh:
			return
		}
	}
}
