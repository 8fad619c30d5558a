package chat

import "sync/atomic"

// Размеры буферов каналов подписки.
// Live-канал маленький: медленный клиент должен терять события,
// а не тормозить комнату. Канал реплея вмещает всю историю целиком,
// чтобы SendHistoryToSession никогда не блокировался под локом комнаты.
const liveBufferSize = 32

// Subscription — то, что получает сессия при входе в комнату.
// Live — широковещательный хвост событий начиная с момента входа.
// History — персональный канал, через который приходит только реплей
// истории по запросу; широковещательные события сюда не попадают.
type Subscription struct {
	Live    chan Event
	History chan Event

	dropped atomic.Uint64
}

func newSubscription(historyCap int) *Subscription {
	return &Subscription{
		Live:    make(chan Event, liveBufferSize),
		History: make(chan Event, historyCap),
	}
}

// deliver кладёт событие в live-канал без блокировки.
// Если буфер клиента полон — событие для этого клиента теряется,
// а счётчик потерь растёт. Остальных подписчиков это не касается.
func (s *Subscription) deliver(ev Event) {
	select {
	case s.Live <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Dropped возвращает число событий, потерянных с прошлого вызова,
// и обнуляет счётчик. Ненулевое значение — сигнал клиенту запросить
// реплей истории, чтобы закрыть пропуск.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Swap(0)
}
