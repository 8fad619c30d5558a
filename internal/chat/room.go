package chat

import (
	"sort"
	"sync"
	"time"
)

// sessionRecord — одна активная сессия внутри комнаты.
// Подписка хранится здесь же: её History-канал и есть персональный
// unicast-эндпоинт сессии для реплея.
type sessionRecord struct {
	sessionID string
	userID    string
	sub       *Subscription
}

// Room владеет всем изменяемым состоянием одной комнаты:
// таблицей сессий, счётчиком сессий по пользователям, ограниченной
// историей и набором подписчиков. Любая мутация — строго под mu.
// Комнаты друг о друге ничего не знают и не пересекаются по локам.
type Room struct {
	metadata   RoomMetadata
	historyCap int

	mu         sync.Mutex
	sessions   map[string]*sessionRecord // session id → запись
	userCounts map[string]int            // user id → число активных сессий
	history    []Event                   // не длиннее historyCap, старое вытесняется
	seq        uint64                    // последний выданный порядковый номер
}

// NewRoom создаёт пустую комнату с фиксированной ёмкостью истории.
func NewRoom(metadata RoomMetadata, historyCap int) *Room {
	return &Room{
		metadata:   metadata,
		historyCap: historyCap,
		sessions:   make(map[string]*sessionRecord),
		userCounts: make(map[string]int),
		history:    make([]Event, 0, historyCap),
	}
}

// Metadata возвращает статическое описание комнаты.
func (r *Room) Metadata() RoomMetadata { return r.metadata }

// Join атомарно регистрирует новую сессию.
// Возвращает подписку (live-события только с этого момента, прошлое —
// через ReplayHistory), handle для последующего Leave и снимок
// уникальных пользователей уже после входа.
//
// Уведомление "user-joined" уходит только существующим подписчикам и
// только на первой сессии пользователя: второй девайс того же
// пользователя комнату не "оживляет" повторно.
func (r *Room) Join(su SessionAndUserID) (*Subscription, UserSessionHandle, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.userCounts[su.UserID] == 0 {
		r.broadcastLocked(Event{
			Type:   EventUserJoin,
			Room:   r.metadata.Name,
			UserID: su.UserID,
		})
	}

	sub := newSubscription(r.historyCap)
	r.sessions[su.SessionID] = &sessionRecord{
		sessionID: su.SessionID,
		userID:    su.UserID,
		sub:       sub,
	}
	r.userCounts[su.UserID]++

	handle := UserSessionHandle{room: r.metadata.Name, sessionID: su.SessionID}
	return sub, handle, r.uniqueUserIDsLocked()
}

// Leave убирает сессию по handle.
// Повторный или "чужой" handle — это баг слоя соединений, поэтому
// возвращаем ErrSessionNotFound, а не молча съедаем (см. manager.go).
// Уведомление "user-left" уходит только когда ушла последняя сессия
// пользователя — зеркально политике Join.
func (r *Room) Leave(handle UserSessionHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[handle.SessionID()]
	if !ok {
		return ErrSessionNotFound
	}

	delete(r.sessions, handle.SessionID())
	r.userCounts[rec.userID]--
	if r.userCounts[rec.userID] <= 0 {
		delete(r.userCounts, rec.userID)
		r.broadcastLocked(Event{
			Type:   EventUserLeft,
			Room:   r.metadata.Name,
			UserID: rec.userID,
		})
	}

	// После удаления комната в эти каналы уже не пишет,
	// закрытие сигналит насосу соединения, что подписка кончилась.
	close(rec.sub.Live)
	close(rec.sub.History)
	return nil
}

// HandleMessage принимает сообщение, кладёт его в историю и рассылает
// всем подписчикам. Активная сессия у автора не требуется: проверка
// "кто имеет право писать" — забота внешнего слоя, комнате достаточно
// user id (см. DESIGN.md).
func (r *Room) HandleMessage(userID, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := r.broadcastLocked(Event{
		Type:    EventMessage,
		Room:    r.metadata.Name,
		UserID:  userID,
		Content: content,
	})

	// История хранит только сообщения, служебные уведомления в реплей
	// не попадают. Самое старое вытесняется при переполнении.
	r.history = append(r.history, ev)
	if len(r.history) > r.historyCap {
		r.history = r.history[len(r.history)-r.historyCap:]
	}
}

// SendHistoryToSession доставляет текущую историю в unicast-канал
// указанной сессии, в сохранённом порядке. Широковещательный канал не
// трогаем: чужой реплей никто кроме адресата не видит.
func (r *Room) SendHistoryToSession(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	for _, ev := range r.history {
		// Буфер History вмещает историю целиком; переполнение возможно
		// только если клиент не вычитал прошлый реплей — тогда хвост
		// теряется, блокироваться под локом комнаты нельзя.
		select {
		case rec.sub.History <- ev:
		default:
			return nil
		}
	}
	return nil
}

// UniqueUserIDs возвращает снимок множества пользователей с хотя бы
// одной активной сессией.
func (r *Room) UniqueUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uniqueUserIDsLocked()
}

func (r *Room) uniqueUserIDsLocked() []string {
	users := make([]string, 0, len(r.userCounts))
	for id := range r.userCounts {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// broadcastLocked присваивает событию порядковый номер и метку времени
// и раздаёт его всем текущим подписчикам без блокировки.
// Вызывается только под r.mu.
func (r *Room) broadcastLocked(ev Event) Event {
	r.seq++
	ev.Seq = r.seq
	ev.Timestamp = time.Now().Unix()

	for _, rec := range r.sessions {
		rec.sub.deliver(ev)
	}
	return ev
}
