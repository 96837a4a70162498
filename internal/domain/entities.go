package domain

import "time"

// DateLayout — формат даты записи на карточке и в таблице (ДД/ММ/ГГ).
const DateLayout = "02/01/06"

// Dish описывает блюдо каталога. Оригинальное написание хранится в Name,
// сопоставление идёт только по нормализованной форме.
type Dish struct {
	ID       int64
	Name     string
	NameNorm string
}

// MessageRef указывает на сообщение в Telegram.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Valid сообщает, заполнена ли ссылка.
func (r MessageRef) Valid() bool {
	return r.ChatID != 0 && r.MessageID != 0
}

// Feedback представляет запись обратной связи гостя.
type Feedback struct {
	ID           int64
	Date         time.Time
	DishName     string
	GuestComment string
	KitchenReply *string
	PrivateRef   *MessageRef
	GroupRef     *MessageRef
	CreatedAt    time.Time
}

// Reply возвращает ответ кухни или пустую строку.
func (f Feedback) Reply() string {
	if f.KitchenReply == nil {
		return ""
	}
	return *f.KitchenReply
}

// HasReply сообщает, есть ли непустой ответ кухни.
func (f Feedback) HasReply() bool {
	return f.KitchenReply != nil && *f.KitchenReply != ""
}

// Subscriber описывает чат, подписанный на рассылки.
type Subscriber struct {
	ChatID   int64
	ChatType string
}
