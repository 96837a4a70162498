package telegram

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"guest-feedback-bot/internal/domain"
	"guest-feedback-bot/internal/infra/metrics"
)

// Messenger реализует domain.Messenger поверх Bot API.
type Messenger struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.Messenger = (*Messenger)(nil)

// NewMessenger создаёт адаптер транспорта.
func NewMessenger(bot *tgbotapi.BotAPI, log zerolog.Logger) *Messenger {
	return &Messenger{bot: bot, log: log}
}

// SendText отправляет обычное текстовое сообщение.
func (m *Messenger) SendText(chatID int64, text string) (domain.MessageRef, error) {
	return m.SendWithMarkup(chatID, text, nil)
}

// SendWithMarkup отправляет сообщение с клавиатурой. Длинный текст режется
// по лимиту Telegram, клавиатура вешается на последнюю часть, ссылка
// возвращается на неё же.
func (m *Messenger) SendWithMarkup(chatID int64, text string, markup any) (domain.MessageRef, error) {
	parts := SplitMessage(text)
	if len(parts) == 0 {
		parts = []string{text}
	}
	var ref domain.MessageRef
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && markup != nil {
			msg.ReplyMarkup = markup
		}
		start := time.Now()
		sent, err := m.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			return domain.MessageRef{}, err
		}
		ref = domain.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}
	}
	return ref, nil
}

// EditText правит текст и клавиатуру существующего сообщения.
func (m *Messenger) EditText(ref domain.MessageRef, text string, markup any) error {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	if keyboard, ok := markup.(*tgbotapi.InlineKeyboardMarkup); ok && keyboard != nil {
		edit.ReplyMarkup = keyboard
	}
	start := time.Now()
	_, err := m.bot.Request(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(ref.ChatID, 10), start, err)
	return err
}

// DeleteMessage удаляет сообщение.
func (m *Messenger) DeleteMessage(ref domain.MessageRef) error {
	del := tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)
	start := time.Now()
	_, err := m.bot.Request(del)
	metrics.ObserveNetworkRequest("telegram_bot", "delete_message", strconv.FormatInt(ref.ChatID, 10), start, err)
	return err
}

// AnswerCallback закрывает «часики» на нажатой inline-кнопке.
func (m *Messenger) AnswerCallback(callbackID string) error {
	start := time.Now()
	_, err := m.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", "callback", start, err)
	return err
}
