package chat

// Типы событий, которые ходят и по broadcast-каналу, и по каналу реплея истории.
const (
	EventMessage  = "message"     // обычное сообщение пользователя
	EventUserJoin = "user-joined" // пользователь появился в комнате (первая сессия)
	EventUserLeft = "user-left"   // пользователь полностью покинул комнату (последняя сессия)
)

// Event представляет одно событие комнаты.
// Это чистые данные: никакой логики, после создания не изменяется.
type Event struct {
	Type      string `json:"type"`              // Тип: "message", "user-joined", "user-left"
	Room      string `json:"room"`              // Имя комнаты
	UserID    string `json:"user_id"`           // Автор события
	Content   string `json:"content,omitempty"` // Текст (только для "message")
	Seq       uint64 `json:"seq"`               // Порядковый номер внутри комнаты, растёт монотонно
	Timestamp int64  `json:"timestamp"`         // Unix-время принятия события комнатой
}

// RoomMetadata — статическое описание комнаты.
// Создаётся один раз при старте из конфигурации и дальше только читается.
type RoomMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SessionAndUserID — пара, идентифицирующая подключение при входе в комнату.
// Уникальность session id гарантирует слой аутентификации, не комната.
type SessionAndUserID struct {
	SessionID string
	UserID    string
}

// UserSessionHandle — непрозрачный токен, который возвращает Join.
// Нужен только чтобы потом адресовать Leave; никаких прав он не несёт.
type UserSessionHandle struct {
	room      string
	sessionID string
}

// Room возвращает имя комнаты, в которую входила сессия.
func (h UserSessionHandle) Room() string { return h.room }

// SessionID возвращает идентификатор сессии.
func (h UserSessionHandle) SessionID() string { return h.sessionID }
