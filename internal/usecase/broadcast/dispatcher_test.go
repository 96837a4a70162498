package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"guest-feedback-bot/internal/domain"
)

type fakeMessenger struct {
	sent   []int64
	failOn map[int64]struct{}
}

func (f *fakeMessenger) SendText(chatID int64, _ string) (domain.MessageRef, error) {
	if _, ok := f.failOn[chatID]; ok {
		return domain.MessageRef{}, errors.New("бот заблокирован")
	}
	f.sent = append(f.sent, chatID)
	return domain.MessageRef{ChatID: chatID, MessageID: 1}, nil
}

func (f *fakeMessenger) SendWithMarkup(chatID int64, text string, _ any) (domain.MessageRef, error) {
	return f.SendText(chatID, text)
}

func (f *fakeMessenger) EditText(domain.MessageRef, string, any) error { return nil }
func (f *fakeMessenger) DeleteMessage(domain.MessageRef) error         { return nil }
func (f *fakeMessenger) AnswerCallback(string) error                   { return nil }

func subscribers(ids ...int64) []domain.Subscriber {
	subs := make([]domain.Subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, domain.Subscriber{ChatID: id, ChatType: "private"})
	}
	return subs
}

func TestSendIsolatesFailures(t *testing.T) {
	msngr := &fakeMessenger{failOn: map[int64]struct{}{2: {}}}
	d := NewDispatcher(msngr, zerolog.Nop(), 0)

	sent, failed := d.Send(context.Background(), "объявление", subscribers(1, 2, 3))
	if sent != 2 || failed != 1 {
		t.Fatalf("ожидали 2 доставки и 1 отказ, получили %d/%d", sent, failed)
	}
	if len(msngr.sent) != 2 || msngr.sent[0] != 1 || msngr.sent[1] != 3 {
		t.Fatalf("отказ одного получателя не должен срывать остальных: %v", msngr.sent)
	}
}

func TestSendEmptyList(t *testing.T) {
	d := NewDispatcher(&fakeMessenger{}, zerolog.Nop(), 0)
	sent, failed := d.Send(context.Background(), "объявление", nil)
	if sent != 0 || failed != 0 {
		t.Fatalf("пустой список — ноль доставок, получили %d/%d", sent, failed)
	}
}

func TestSendStopsOnCancelledContext(t *testing.T) {
	msngr := &fakeMessenger{}
	d := NewDispatcher(msngr, zerolog.Nop(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, _ := d.Send(ctx, "объявление", subscribers(1, 2, 3))
	if sent != 0 {
		t.Fatalf("после отмены контекста рассылка не продолжается, отправлено %d", sent)
	}
}
