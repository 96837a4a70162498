package domain

import (
	"context"
	"errors"
)

// ErrNotFound возвращается репозиториями, когда записи нет.
var ErrNotFound = errors.New("запись не найдена")

// DishRepo управляет каталогом блюд.
type DishRepo interface {
	// UpsertDish сохраняет блюдо по нормализованному имени (insert-or-ignore).
	UpsertDish(ctx context.Context, name, nameNorm string) error
	DeleteDish(ctx context.Context, nameNorm string) error
	CountDishes(ctx context.Context) (int, error)
	// SearchDishes возвращает оригинальные названия блюд, чья нормализованная
	// форма содержит подстроку substr.
	SearchDishes(ctx context.Context, substr string, limit int) ([]string, error)
	// SearchDishesAllTokens возвращает блюда, содержащие каждый из токенов.
	SearchDishesAllTokens(ctx context.Context, tokens []string, limit int) ([]string, error)
}

// FeedbackRepo управляет записями обратной связи.
type FeedbackRepo interface {
	CreateFeedback(ctx context.Context, fb Feedback) (int64, error)
	GetFeedback(ctx context.Context, id int64) (Feedback, error)
	UpdateKitchenReply(ctx context.Context, id int64, reply string) error
	SetPrivateRef(ctx context.Context, id int64, ref MessageRef) error
	SetGroupRef(ctx context.Context, id int64, ref MessageRef) error
	DeleteFeedback(ctx context.Context, id int64) error
}

// SubscriberRepo управляет подписчиками рассылок.
type SubscriberRepo interface {
	UpsertSubscriber(ctx context.Context, sub Subscriber) error
	DeleteSubscriber(ctx context.Context, chatID int64) error
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
}

// Messenger описывает поверхность чат-транспорта, нужную ядру.
// Любой вызов может завершиться ошибкой (сообщение уже удалено, нет прав),
// и каждый вызывающий обязан её пережить.
type Messenger interface {
	SendText(chatID int64, text string) (MessageRef, error)
	SendWithMarkup(chatID int64, text string, markup any) (MessageRef, error)
	EditText(ref MessageRef, text string, markup any) error
	DeleteMessage(ref MessageRef) error
	AnswerCallback(callbackID string) error
}

// SheetMirror зеркалирует записи в таблицу. Все операции best-effort:
// источник истины — реляционное хранилище.
type SheetMirror interface {
	AppendRow(ctx context.Context, fb Feedback) error
	// UpdateRow находит строку по колонке id и обновляет её; при отсутствии
	// строки дописывает новую и возвращает appended=true.
	UpdateRow(ctx context.Context, fb Feedback) (appended bool, err error)
	DeleteRow(ctx context.Context, id int64) error
}
