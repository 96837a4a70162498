package session

import (
	"sync"
	"time"

	"guest-feedback-bot/internal/domain"
)

// State — состояние диалога в рамках одного чата.
type State int

const (
	// StateIdle — диалог не начат.
	StateIdle State = iota
	// StateDish — ждём название блюда.
	StateDish
	// StateNewDishConfirm — ждём подтверждения нового блюда.
	StateNewDishConfirm
	// StateComment — ждём комментарий гостя.
	StateComment
	// StateReply — ждём ответ кухни или /skip.
	StateReply
	// StateEditReply — ждём новый ответ кухни для существующей записи.
	StateEditReply
	// StateBulkDishes — ждём список блюд для импорта.
	StateBulkDishes
	// StateBroadcast — ждём текст рассылки.
	StateBroadcast
)

// Session хранит черновик диалога одного чата. Сессия принадлежит
// ровно одному чату и никогда не разделяется между ними.
type Session struct {
	State       State
	Date        time.Time
	Dish        string
	Comment     string
	PendingDish string
	EditTarget  int64

	tracked  []domain.MessageRef
	lastSeen time.Time
}

// Track запоминает служебное сообщение для последующей зачистки.
// Итоговые карточки и зеркала сюда не попадают.
func (s *Session) Track(ref domain.MessageRef) {
	if !ref.Valid() {
		return
	}
	s.tracked = append(s.tracked, ref)
}

// Tracked возвращает число отслеживаемых сообщений.
func (s *Session) Tracked() int {
	return len(s.tracked)
}

// Flush удаляет отслеживаемые сообщения в обратном порядке и очищает
// список независимо от исходов: уже удалённое вручную сообщение не
// должно ломать зачистку.
func (s *Session) Flush(deleter domain.Messenger) {
	for i := len(s.tracked) - 1; i >= 0; i-- {
		_ = deleter.DeleteMessage(s.tracked[i])
	}
	s.tracked = nil
}

// Reset очищает черновик, сохраняя сессию за чатом.
func (s *Session) Reset() {
	*s = Session{lastSeen: s.lastSeen}
}

// Store — потокобезопасное хранилище сессий chatID -> Session.
// Живёт только в памяти процесса.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore создаёт хранилище. Сессии, простоявшие без активности дольше
// ttl, вычищаются при Sweep; ttl <= 0 отключает вытеснение.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get возвращает сессию чата, создавая её при первом обращении.
func (st *Store) Get(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if !ok {
		s = &Session{}
		st.sessions[chatID] = s
	}
	s.lastSeen = st.now()
	return s
}

// Clear удаляет сессию чата.
func (st *Store) Clear(chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, chatID)
}

// Sweep удаляет простаивающие сессии и возвращает их для зачистки
// накопленных сообщений вызывающей стороной.
func (st *Store) Sweep() []*Session {
	if st.ttl <= 0 {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	deadline := st.now().Add(-st.ttl)
	var expired []*Session
	for chatID, s := range st.sessions {
		if s.lastSeen.Before(deadline) {
			expired = append(expired, s)
			delete(st.sessions, chatID)
		}
	}
	return expired
}
