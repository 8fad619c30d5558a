package chat

import (
	"errors"
	"fmt"
)

// Типизированные отказы уровня справочника комнат.
// Оба восстановимы для вызывающего и никогда не роняют процесс.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session not found")
)

// RoomManager — неизменяемый после конструктора справочник комнат.
// Набор комнат фиксируется при старте процесса: добавления и удаления
// нет, поэтому самой мапе синхронизация не нужна — вся конкуренция
// живёт внутри отдельных комнат.
type RoomManager struct {
	rooms    map[string]*Room
	metadata []RoomMetadata
}

// NewRoomManager строит справочник из списка метаданных.
// historyCap — ёмкость истории каждой комнаты.
func NewRoomManager(metadata []RoomMetadata, historyCap int) *RoomManager {
	rooms := make(map[string]*Room, len(metadata))
	for _, md := range metadata {
		rooms[md.Name] = NewRoom(md, historyCap)
	}
	return &RoomManager{
		rooms:    rooms,
		metadata: metadata,
	}
}

// Metadata возвращает описания всех комнат в порядке загрузки.
func (m *RoomManager) Metadata() []RoomMetadata {
	return m.metadata
}

// Join подключает сессию к комнате.
// Возвращает живую подписку, handle для Leave и снимок уникальных
// пользователей комнаты на момент входа.
func (m *RoomManager) Join(roomName string, su SessionAndUserID) (*Subscription, UserSessionHandle, []string, error) {
	room, ok := m.rooms[roomName]
	if !ok {
		return nil, UserSessionHandle{}, nil, fmt.Errorf("room %q: %w", roomName, ErrRoomNotFound)
	}
	sub, handle, users := room.Join(su)
	return sub, handle, users, nil
}

// Leave отключает сессию по handle, полученному из Join.
// Повторный Leave с тем же handle — ошибка вызывающего слоя,
// возвращается ErrSessionNotFound.
func (m *RoomManager) Leave(handle UserSessionHandle) error {
	room, ok := m.rooms[handle.Room()]
	if !ok {
		// Справочник фиксированный, но handle — просто данные извне,
		// поэтому проверка обязательна.
		return fmt.Errorf("room %q: %w", handle.Room(), ErrRoomNotFound)
	}
	return room.Leave(handle)
}

// PostMessage принимает сообщение в комнату: запись в историю плюс
// рассылка всем подписчикам.
func (m *RoomManager) PostMessage(roomName, userID, content string) error {
	room, ok := m.rooms[roomName]
	if !ok {
		return fmt.Errorf("room %q: %w", roomName, ErrRoomNotFound)
	}
	room.HandleMessage(userID, content)
	return nil
}

// ReplayHistory отправляет накопленную историю комнаты в unicast-канал
// указанной сессии. Сама доставка — побочный эффект, возвращается
// только успех/отказ.
func (m *RoomManager) ReplayHistory(roomName, sessionID string) error {
	room, ok := m.rooms[roomName]
	if !ok {
		return fmt.Errorf("room %q: %w", roomName, ErrRoomNotFound)
	}
	return room.SendHistoryToSession(sessionID)
}
