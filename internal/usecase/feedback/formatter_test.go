package feedback

import (
	"strings"
	"testing"
	"time"

	"guest-feedback-bot/internal/domain"
)

func TestRenderCard(t *testing.T) {
	reply := "переделали"
	fb := domain.Feedback{
		ID:           7,
		Date:         time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC),
		DishName:     "Борщ",
		GuestComment: "остыл",
		KitchenReply: &reply,
	}

	card := RenderCard(fb)
	for _, want := range []string{"🧾 ОС #7", "📅 Дата: 30/08/26", "🍽 Блюдо: Борщ", "остыл", "переделали"} {
		if !strings.Contains(card, want) {
			t.Fatalf("в карточке нет %q:\n%s", want, card)
		}
	}
}

func TestRenderCardWithoutReply(t *testing.T) {
	fb := domain.Feedback{ID: 1, Date: time.Now(), DishName: "Плов", GuestComment: "мало мяса"}
	card := RenderCard(fb)
	if !strings.Contains(card, emptyReplyPlaceholder) {
		t.Fatalf("ожидали плейсхолдер для пустого ответа:\n%s", card)
	}
}

func TestRenderCardDeterministic(t *testing.T) {
	fb := domain.Feedback{ID: 1, Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), DishName: "Плов", GuestComment: "ок"}
	if RenderCard(fb) != RenderCard(fb) {
		t.Fatalf("карточка должна зависеть только от записи")
	}
}
