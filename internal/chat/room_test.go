package chat_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/go-portfolio/chat-rooms/internal/chat"
	"github.com/stretchr/testify/assert"
)

// readEvent читает одно событие из канала с таймаутом, чтобы тест
// не завис насмерть при ошибке в доставке (хорошая практика для каналов).
func readEvent(t *testing.T, ch <-chan chat.Event) chat.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("канал закрыт, события не будет")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("событие не пришло в канал")
	}
	return chat.Event{}
}

// assertNoEvent проверяет, что в канале ничего не лежит.
// Доставка в комнате синхронная, поэтому пустой буфер означает
// "событие не отправлялось", ждать не нужно.
func assertNoEvent(t *testing.T, ch <-chan chat.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("неожиданное событие в канале: %+v", ev)
	default:
	}
}

func newTestRoom(capacity int) *chat.Room {
	return chat.NewRoom(chat.RoomMetadata{Name: "test", Description: "тестовая"}, capacity)
}

// --- Тесты Join/Leave и множества уникальных пользователей -------------------

// TestRoom_JoinReturnsSnapshot
// Цель: Join возвращает снимок уникальных пользователей уже после входа.
func TestRoom_JoinReturnsSnapshot(t *testing.T) {
	room := newTestRoom(10)

	_, _, users := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "alice"})
	assert.Equal(t, []string{"alice"}, users, "после первого входа в комнате один пользователь")

	_, _, users = room.Join(chat.SessionAndUserID{SessionID: "s2", UserID: "bob"})
	assert.Equal(t, []string{"alice", "bob"}, users)
}

// TestRoom_MultiDeviceUser
// Цель: несколько сессий одного пользователя дают одну запись в множестве
// уникальных пользователей; запись исчезает только после ухода последней сессии.
func TestRoom_MultiDeviceUser(t *testing.T) {
	room := newTestRoom(10)

	_, h1, _ := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "alice"})
	_, h2, _ := room.Join(chat.SessionAndUserID{SessionID: "s2", UserID: "alice"})
	assert.Equal(t, []string{"alice"}, room.UniqueUserIDs(), "две сессии — один пользователь")

	assert.NoError(t, room.Leave(h1))
	assert.Equal(t, []string{"alice"}, room.UniqueUserIDs(), "осталась вторая сессия")

	assert.NoError(t, room.Leave(h2))
	assert.Empty(t, room.UniqueUserIDs(), "ушла последняя сессия — пользователя нет")
}

// TestRoom_UniqueUsersRandomInterleaving
// Цель: при случайном порядке входов/выходов множество уникальных
// пользователей всегда совпадает с множеством владельцев активных сессий.
func TestRoom_UniqueUsersRandomInterleaving(t *testing.T) {
	room := newTestRoom(10)
	rng := rand.New(rand.NewSource(42))

	active := map[string]chat.UserSessionHandle{} // session id → handle
	owners := map[string]string{}                 // session id → user id
	next := 0

	for i := 0; i < 500; i++ {
		if len(active) == 0 || rng.Intn(2) == 0 {
			sid := fmt.Sprintf("s%d", next)
			uid := fmt.Sprintf("user%d", rng.Intn(5)) // намеренно мало: будут мульти-девайсы
			next++
			_, h, _ := room.Join(chat.SessionAndUserID{SessionID: sid, UserID: uid})
			active[sid] = h
			owners[sid] = uid
		} else {
			for sid, h := range active { // любая из активных
				assert.NoError(t, room.Leave(h))
				delete(active, sid)
				delete(owners, sid)
				break
			}
		}

		want := map[string]bool{}
		for _, uid := range owners {
			want[uid] = true
		}
		got := room.UniqueUserIDs()
		assert.Len(t, got, len(want), "шаг %d: размер множества разошёлся", i)
		for _, uid := range got {
			assert.True(t, want[uid], "шаг %d: лишний пользователь %s", i, uid)
		}
	}
}

// TestRoom_LeaveStaleHandle
// Цель: повторный Leave с тем же handle — ошибка, а не тихий no-op.
// Тихий успех прятал бы баги слоя соединений (двойное "освобождение").
func TestRoom_LeaveStaleHandle(t *testing.T) {
	room := newTestRoom(10)

	_, h, _ := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "alice"})
	assert.NoError(t, room.Leave(h))

	err := room.Leave(h)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound, "второй Leave обязан вернуть ошибку")
}

// --- Тесты уведомлений о входе/выходе ----------------------------------------

// TestRoom_JoinNoticeOnlyFirstSession
// Цель: "user-joined" рассылается существующим подписчикам только при
// первой сессии пользователя; второй девайс уведомления не порождает.
// Сам входящий своё уведомление не получает — его подписка начинается "сейчас".
func TestRoom_JoinNoticeOnlyFirstSession(t *testing.T) {
	room := newTestRoom(10)
	subA, _, _ := room.Join(chat.SessionAndUserID{SessionID: "a1", UserID: "alice"})

	subB, _, _ := room.Join(chat.SessionAndUserID{SessionID: "b1", UserID: "bob"})
	ev := readEvent(t, subA.Live)
	assert.Equal(t, chat.EventUserJoin, ev.Type)
	assert.Equal(t, "bob", ev.UserID)
	assertNoEvent(t, subB.Live)

	// Второй девайс bob-а: уведомления быть не должно.
	room.Join(chat.SessionAndUserID{SessionID: "b2", UserID: "bob"})
	assertNoEvent(t, subA.Live)
}

// TestRoom_LeaveNoticeOnlyLastSession
// Цель: "user-left" уходит только после ухода последней сессии пользователя.
func TestRoom_LeaveNoticeOnlyLastSession(t *testing.T) {
	room := newTestRoom(10)
	subA, _, _ := room.Join(chat.SessionAndUserID{SessionID: "a1", UserID: "alice"})
	_, h1, _ := room.Join(chat.SessionAndUserID{SessionID: "b1", UserID: "bob"})
	_, h2, _ := room.Join(chat.SessionAndUserID{SessionID: "b2", UserID: "bob"})
	readEvent(t, subA.Live) // join-уведомление о bob

	assert.NoError(t, room.Leave(h1))
	assertNoEvent(t, subA.Live)

	assert.NoError(t, room.Leave(h2))
	ev := readEvent(t, subA.Live)
	assert.Equal(t, chat.EventUserLeft, ev.Type)
	assert.Equal(t, "bob", ev.UserID)
}

// --- Тесты сообщений, истории и реплея ---------------------------------------

// TestRoom_MessageDeliveredToAllSubscribers
func TestRoom_MessageDeliveredToAllSubscribers(t *testing.T) {
	room := newTestRoom(10)
	subA, _, _ := room.Join(chat.SessionAndUserID{SessionID: "a1", UserID: "alice"})
	subB, _, _ := room.Join(chat.SessionAndUserID{SessionID: "b1", UserID: "bob"})
	readEvent(t, subA.Live) // съедаем уведомление о входе bob

	room.HandleMessage("alice", "hello")

	for _, sub := range []*chat.Subscription{subA, subB} {
		ev := readEvent(t, sub.Live)
		assert.Equal(t, chat.EventMessage, ev.Type)
		assert.Equal(t, "hello", ev.Content)
		assert.Equal(t, "alice", ev.UserID)
	}
}

// TestRoom_SubscriptionStartsAtJoin
// Цель: подписка позиционирована на "сейчас" — события, разосланные до
// входа, в live-канал не попадают.
func TestRoom_SubscriptionStartsAtJoin(t *testing.T) {
	room := newTestRoom(10)
	room.Join(chat.SessionAndUserID{SessionID: "a1", UserID: "alice"})
	room.HandleMessage("alice", "before")

	subB, _, _ := room.Join(chat.SessionAndUserID{SessionID: "b1", UserID: "bob"})
	assertNoEvent(t, subB.Live)

	room.HandleMessage("alice", "after")
	ev := readEvent(t, subB.Live)
	assert.Equal(t, "after", ev.Content, "видно только то, что после входа")
}

// TestRoom_ReplayReturnsPreJoinHistory
// Цель: Join и сразу ReplayHistory возвращает ровно историю, накопленную
// до входа — события после входа приходят по live-подписке, не в реплее.
func TestRoom_ReplayReturnsPreJoinHistory(t *testing.T) {
	room := newTestRoom(10)
	room.HandleMessage("alice", "hi")
	room.HandleMessage("alice", "there")

	sub, _, _ := room.Join(chat.SessionAndUserID{SessionID: "b1", UserID: "bob"})
	assert.NoError(t, room.SendHistoryToSession("b1"))

	first := readEvent(t, sub.History)
	second := readEvent(t, sub.History)
	assert.Equal(t, "hi", first.Content)
	assert.Equal(t, "there", second.Content)
	assert.Less(t, first.Seq, second.Seq, "порядок реплея совпадает с порядком приёма")
	assertNoEvent(t, sub.History)
}

// TestRoom_HistoryCapacity
// Цель: история никогда не превышает ёмкость; после N+1 сообщений при
// ёмкости N самое старое из реплея исчезает.
func TestRoom_HistoryCapacity(t *testing.T) {
	room := newTestRoom(3)
	for _, text := range []string{"m1", "m2", "m3", "m4"} {
		room.HandleMessage("alice", text)
	}

	sub, _, _ := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "bob"})
	assert.NoError(t, room.SendHistoryToSession("s1"))

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, readEvent(t, sub.History).Content)
	}
	assertNoEvent(t, sub.History)
	assert.Equal(t, []string{"m2", "m3", "m4"}, got, "m1 вытеснено, порядок сохранён")
}

// TestRoom_ReplayNotSharedWithOthers
// Цель: реплей — строго unicast; чужие подписчики дубликатов не видят.
func TestRoom_ReplayNotSharedWithOthers(t *testing.T) {
	room := newTestRoom(10)
	room.HandleMessage("alice", "old")

	subA, _, _ := room.Join(chat.SessionAndUserID{SessionID: "a1", UserID: "alice"})
	subB, _, _ := room.Join(chat.SessionAndUserID{SessionID: "b1", UserID: "bob"})
	readEvent(t, subA.Live) // уведомление о входе bob

	assert.NoError(t, room.SendHistoryToSession("b1"))

	readEvent(t, subB.History)
	assertNoEvent(t, subA.Live)
	assertNoEvent(t, subA.History)
}

// TestRoom_PermissivePosting
// Цель: зафиксировать политику — для HandleMessage активная сессия автора
// не требуется, сообщение принимается и попадает в историю.
func TestRoom_PermissivePosting(t *testing.T) {
	room := newTestRoom(10)
	room.HandleMessage("ghost", "я тут не сижу")

	sub, _, _ := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "bob"})
	assert.NoError(t, room.SendHistoryToSession("s1"))

	ev := readEvent(t, sub.History)
	assert.Equal(t, "ghost", ev.UserID)
}

// TestRoom_SequenceNumbersMonotonic
// Цель: порядковые номера растут монотонно внутри комнаты — по ним клиент
// после потери событий находит пропуск.
func TestRoom_SequenceNumbersMonotonic(t *testing.T) {
	room := newTestRoom(10)
	sub, _, _ := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "alice"})

	room.HandleMessage("alice", "one")
	room.HandleMessage("alice", "two")
	room.HandleMessage("alice", "three")

	var prev uint64
	for i := 0; i < 3; i++ {
		ev := readEvent(t, sub.Live)
		assert.Greater(t, ev.Seq, prev)
		prev = ev.Seq
	}
}

// TestRoom_SlowSubscriberLoses
// Цель: медленный подписчик теряет события (буфер полон — событие мимо),
// комната не блокируется, а счётчик потерь сигналит о необходимости реплея.
// Остальные подписчики получают всё.
func TestRoom_SlowSubscriberLoses(t *testing.T) {
	room := newTestRoom(200)
	slow, _, _ := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "alice"})

	// Больше, чем вмещает live-буфер: хвост обязан потеряться.
	for i := 0; i < 100; i++ {
		room.HandleMessage("bob", fmt.Sprintf("msg-%d", i))
	}

	assert.Greater(t, slow.Dropped(), uint64(0), "потери должны быть зафиксированы")
	assert.Zero(t, slow.Dropped(), "повторный вызов после сброса — ноль")

	// Что дошло — дошло без переупорядочивания.
	var prev uint64
	for {
		select {
		case ev := <-slow.Live:
			assert.Greater(t, ev.Seq, prev)
			prev = ev.Seq
		default:
			return
		}
	}
}

// TestRoom_LeaveClosesSubscription
// Цель: после Leave каналы подписки закрыты — насос соединения узнаёт,
// что читать больше нечего.
func TestRoom_LeaveClosesSubscription(t *testing.T) {
	room := newTestRoom(10)
	sub, h, _ := room.Join(chat.SessionAndUserID{SessionID: "s1", UserID: "alice"})
	assert.NoError(t, room.Leave(h))

	_, ok := <-sub.Live
	assert.False(t, ok, "live-канал должен быть закрыт")
	_, ok = <-sub.History
	assert.False(t, ok, "канал реплея должен быть закрыт")
}

// TestRoom_ConcurrentJoinLeavePost
// Цель: гонка из параллельных входов, выходов и сообщений не ломает
// инварианты комнаты (запускать с -race).
func TestRoom_ConcurrentJoinLeavePost(t *testing.T) {
	room := newTestRoom(50)
	done := make(chan struct{})

	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				sid := fmt.Sprintf("g%d-s%d", g, i)
				uid := fmt.Sprintf("user%d", g%3)
				sub, h, _ := room.Join(chat.SessionAndUserID{SessionID: sid, UserID: uid})
				room.HandleMessage(uid, "ping")
				_ = room.SendHistoryToSession(sid)
				// Подписку просто бросаем: вычитывать необязательно,
				// доставка неблокирующая.
				_ = sub
				if err := room.Leave(h); err != nil {
					t.Errorf("Leave(%s): %v", sid, err)
					return
				}
			}
		}(g)
	}

	for g := 0; g < 8; g++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("горутины не завершились: вероятен дедлок в комнате")
		}
	}

	assert.Empty(t, room.UniqueUserIDs(), "все сессии вышли — комната пуста")
}
