package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// dishKeyboard строит reply-клавиатуру с вариантами блюд, по два в ряд.
func dishKeyboard(options []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for i, name := range options {
		row = append(row, tgbotapi.NewKeyboardButton(name))
		if (i+1)%2 == 0 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true
	return keyboard
}

// CardKeyboard строит inline-клавиатуру итоговой карточки.
func CardKeyboard(id int64) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Ответ кухни", fmt.Sprintf("edit:%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", fmt.Sprintf("del:%d", id)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Новая запись", "new"),
		),
	)
	return &markup
}

func newDishKeyboard() *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Добавить новое", "dish_ok"),
			tgbotapi.NewInlineKeyboardButtonData("🔁 Ввести заново", "dish_retry"),
		),
	)
	return &markup
}

func deleteConfirmKeyboard(id int64) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Да, удалить", fmt.Sprintf("del_yes:%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("Нет", "del_no"),
		),
	)
	return &markup
}

func removeKeyboard() tgbotapi.ReplyKeyboardRemove {
	return tgbotapi.NewRemoveKeyboard(true)
}
