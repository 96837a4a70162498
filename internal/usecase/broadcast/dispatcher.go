package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guest-feedback-bot/internal/domain"
	"guest-feedback-bot/internal/infra/metrics"
)

// Dispatcher рассылает сообщения подписчикам. Между отправками
// выдерживается пауза, чтобы не упереться в лимиты Bot API; отказ
// одного получателя (бот заблокирован, чат удалён) не мешает остальным.
type Dispatcher struct {
	msngr domain.Messenger
	log   zerolog.Logger
	delay time.Duration
}

// NewDispatcher создаёт диспетчер с фиксированной паузой между отправками.
func NewDispatcher(msngr domain.Messenger, log zerolog.Logger, delay time.Duration) *Dispatcher {
	return &Dispatcher{msngr: msngr, log: log, delay: delay}
}

// Send доставляет текст всем получателям и возвращает счётчики.
// Индивидуальные сбои считаются, но никогда не поднимаются наверх.
func (d *Dispatcher) Send(ctx context.Context, text string, recipients []domain.Subscriber) (sent, failed int) {
	runID := uuid.NewString()
	d.log.Info().Str("run", runID).Int("recipients", len(recipients)).Msg("рассылка начата")

	for i, sub := range recipients {
		if err := ctx.Err(); err != nil {
			d.log.Warn().Str("run", runID).Err(err).Msg("рассылка прервана")
			break
		}
		if _, err := d.msngr.SendText(sub.ChatID, text); err != nil {
			failed++
			metrics.BroadcastRecipients.WithLabelValues("failed").Inc()
			d.log.Warn().Str("run", runID).Int64("chat", sub.ChatID).Err(err).Msg("не удалось доставить")
		} else {
			sent++
			metrics.BroadcastRecipients.WithLabelValues("sent").Inc()
		}
		if d.delay > 0 && i < len(recipients)-1 {
			time.Sleep(d.delay)
		}
	}

	d.log.Info().Str("run", runID).Int("sent", sent).Int("failed", failed).Msg("рассылка завершена")
	return sent, failed
}
