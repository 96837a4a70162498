package feedback

import (
	"fmt"

	"guest-feedback-bot/internal/domain"
)

const emptyReplyPlaceholder = "— (пока нет ответа кухни)"

// RenderCard строит текст карточки ОС. Текст — чистая функция записи:
// одинаковая запись всегда даёт одинаковую карточку.
func RenderCard(fb domain.Feedback) string {
	reply := fb.Reply()
	if reply == "" {
		reply = emptyReplyPlaceholder
	}
	return fmt.Sprintf(
		"🧾 ОС #%d\n📅 Дата: %s\n🍽 Блюдо: %s\n\n💬 Комментарий гостя:\n%s\n\n👨‍🍳 Ответ кухни:\n%s",
		fb.ID,
		fb.Date.Format(domain.DateLayout),
		fb.DishName,
		fb.GuestComment,
		reply,
	)
}
