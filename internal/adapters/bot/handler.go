package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"guest-feedback-bot/internal/domain"
	"guest-feedback-bot/internal/usecase/broadcast"
	"guest-feedback-bot/internal/usecase/dishes"
	"guest-feedback-bot/internal/usecase/feedback"
	"guest-feedback-bot/internal/usecase/session"
)

const dishPrompt = "Записываем ОС.\n\n1) Введи слово или буквы из названия блюда (появятся кнопки с вариантами):"

// Handler обслуживает апдейты бота и ведёт диалоговые сценарии.
type Handler struct {
	msngr      domain.Messenger
	log        zerolog.Logger
	matcher    *dishes.Matcher
	feedbackUC *feedback.Service
	dishRepo   domain.DishRepo
	subs       domain.SubscriberRepo
	dispatcher *broadcast.Dispatcher
	sessions   *session.Store
	admins     map[int64]struct{}
}

// NewHandler создаёт обработчик.
func NewHandler(msngr domain.Messenger, log zerolog.Logger, matcher *dishes.Matcher, feedbackUC *feedback.Service, dishRepo domain.DishRepo, subs domain.SubscriberRepo, dispatcher *broadcast.Dispatcher, sessions *session.Store, admins map[int64]struct{}) *Handler {
	return &Handler{
		msngr:      msngr,
		log:        log,
		matcher:    matcher,
		feedbackUC: feedbackUC,
		dishRepo:   dishRepo,
		subs:       subs,
		dispatcher: dispatcher,
		sessions:   sessions,
		admins:     admins,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) isAdmin(userID int64) bool {
	_, ok := h.admins[userID]
	return ok
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	// Личный чат автоматически регистрируется как подписчик рассылок.
	if msg.Chat.IsPrivate() {
		if err := h.subs.UpsertSubscriber(ctx, domain.Subscriber{ChatID: chatID, ChatType: msg.Chat.Type}); err != nil {
			h.log.Warn().Err(err).Int64("chat", chatID).Msg("не удалось зарегистрировать подписчика")
		}
	}

	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, msg, text)
		return
	}

	sess := h.sessions.Get(chatID)
	switch sess.State {
	case session.StateDish:
		h.onDishInput(ctx, chatID, sess, msg, text)
	case session.StateNewDishConfirm:
		h.trackIncoming(sess, msg)
		h.sendTracked(sess, chatID, fmt.Sprintf("Блюда «%s» нет в каталоге. Добавить как новое?", sess.PendingDish), newDishKeyboard())
	case session.StateComment:
		h.onCommentInput(sess, msg, chatID, text)
	case session.StateReply:
		h.onReplyInput(ctx, chatID, sess, msg, text)
	case session.StateEditReply:
		h.onEditedReply(ctx, chatID, sess, msg, text)
	case session.StateBulkDishes:
		h.onBulkList(ctx, chatID, sess, msg, text)
	case session.StateBroadcast:
		h.onBroadcastText(ctx, chatID, sess, msg, text)
	default:
		h.reply(chatID, "Чтобы записать ОС, отправьте /new. Список команд — /help")
	}
}

// splitCommand выделяет слово команды (без упоминания бота) и аргументы.
// `/newyear` — не `/new`, а неизвестная команда.
func splitCommand(text string) (cmd, args string) {
	cmd = text
	if i := strings.IndexAny(cmd, " \t\n"); i >= 0 {
		args = strings.TrimSpace(cmd[i+1:])
		cmd = cmd[:i]
	}
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, args
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	chatID := msg.Chat.ID
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/start", "/new":
		h.startFlow(chatID, msg)
	case "/skip":
		sess := h.sessions.Get(chatID)
		if sess.State != session.StateReply {
			h.reply(chatID, "Сейчас нечего пропускать.")
			return
		}
		h.trackIncoming(sess, msg)
		h.finalize(ctx, chatID, sess, nil)
	case "/cancel":
		sess := h.sessions.Get(chatID)
		h.trackIncoming(sess, msg)
		sess.Flush(h.msngr)
		h.sessions.Clear(chatID)
	case "/help":
		h.reply(chatID, h.buildHelpMessage())
	case "/whoami":
		h.reply(chatID, fmt.Sprintf("Ваш user_id: %d", userID))
	case "/subscribe":
		if err := h.subs.UpsertSubscriber(ctx, domain.Subscriber{ChatID: chatID, ChatType: msg.Chat.Type}); err != nil {
			h.reply(chatID, "Не удалось оформить подписку. Попробуйте позже.")
			return
		}
		h.reply(chatID, "✅ Подписка на рассылки оформлена.")
	case "/unsubscribe":
		if err := h.subs.DeleteSubscriber(ctx, chatID); err != nil {
			h.reply(chatID, "Не удалось отключить подписку. Попробуйте позже.")
			return
		}
		h.reply(chatID, "Подписка отключена.")
	case "/dadd":
		h.handleDishAdd(ctx, chatID, userID, args)
	case "/ddel":
		h.handleDishDelete(ctx, chatID, userID, args)
	case "/dlist":
		h.handleDishCount(ctx, chatID, userID)
	case "/dbulk":
		h.handleBulkStart(chatID, userID, msg)
	case "/broadcast":
		h.handleBroadcastStart(chatID, userID, msg)
	default:
		h.reply(chatID, "Неизвестная команда. Используйте /help")
	}
}

// startFlow открывает сценарий новой записи. Дата фиксируется на момент
// старта. Незавершённый диалог зачищается вместе со своими сообщениями,
// иначе его подсказки останутся висеть в чате.
func (h *Handler) startFlow(chatID int64, msg *tgbotapi.Message) {
	sess := h.sessions.Get(chatID)
	sess.Flush(h.msngr)
	sess.Reset()
	sess.State = session.StateDish
	sess.Date = time.Now()
	if msg != nil {
		h.trackIncoming(sess, msg)
	}
	h.sendTracked(sess, chatID, dishPrompt, removeKeyboard())
}

func (h *Handler) onDishInput(ctx context.Context, chatID int64, sess *session.Session, msg *tgbotapi.Message, text string) {
	h.trackIncoming(sess, msg)

	if len([]rune(text)) < dishes.MinQueryLen {
		h.sendTracked(sess, chatID, "Нужно минимум 2 буквы. Повторите:", nil)
		return
	}

	options, err := h.matcher.Resolve(ctx, text)
	if err != nil {
		h.sendTracked(sess, chatID, "Не получилось поискать по каталогу. Повторите ещё раз:", nil)
		return
	}

	switch dishes.Decide(text, options) {
	case dishes.OutcomeAccept:
		sess.Dish = options[0]
		sess.State = session.StateComment
		h.sendTracked(sess, chatID, "2) Комментарий гостя:", removeKeyboard())
	case dishes.OutcomeSuggest:
		h.sendTracked(sess, chatID, "Выберите блюдо кнопкой (или допишите точнее):", dishKeyboard(options))
	default:
		// Совпадений нет: новое блюдо попадает в каталог только после
		// явного подтверждения, иначе опечатки засоряют каталог.
		sess.PendingDish = text
		sess.State = session.StateNewDishConfirm
		h.sendTracked(sess, chatID, fmt.Sprintf("Блюда «%s» нет в каталоге. Добавить как новое?", text), newDishKeyboard())
	}
}

func (h *Handler) onCommentInput(sess *session.Session, msg *tgbotapi.Message, chatID int64, text string) {
	h.trackIncoming(sess, msg)
	if text == "" {
		h.sendTracked(sess, chatID, "Комментарий не должен быть пустым. Повторите:", nil)
		return
	}
	sess.Comment = text
	sess.State = session.StateReply
	h.sendTracked(sess, chatID, "3) Ответ кухни (или /skip чтобы пропустить):", nil)
}

func (h *Handler) onReplyInput(ctx context.Context, chatID int64, sess *session.Session, msg *tgbotapi.Message, text string) {
	h.trackIncoming(sess, msg)
	if text == "" {
		h.sendTracked(sess, chatID, "Ответ пустой. Введите текст или /skip:", nil)
		return
	}
	h.finalize(ctx, chatID, sess, &text)
}

// finalize создаёт запись и зачищает служебные сообщения. Итоговая
// карточка отправляется координатором и не отслеживается.
func (h *Handler) finalize(ctx context.Context, chatID int64, sess *session.Session, reply *string) {
	fb := domain.Feedback{
		Date:         sess.Date,
		DishName:     sess.Dish,
		GuestComment: sess.Comment,
		KitchenReply: reply,
	}
	_, report, err := h.feedbackUC.Create(ctx, chatID, fb)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось создать запись")
		sess.Flush(h.msngr)
		h.sessions.Clear(chatID)
		h.reply(chatID, "Не удалось сохранить запись. Начните заново: /new")
		return
	}

	sess.Flush(h.msngr)
	h.sessions.Clear(chatID)
	if warnings := report.Warnings(); len(warnings) > 0 {
		h.reply(chatID, "Запись сохранена.\n"+strings.Join(warnings, "\n"))
	}
}

func (h *Handler) onEditedReply(ctx context.Context, chatID int64, sess *session.Session, msg *tgbotapi.Message, text string) {
	h.trackIncoming(sess, msg)
	if text == "" {
		h.sendTracked(sess, chatID, "Ответ не должен быть пустым. Введите ещё раз:", nil)
		return
	}

	_, report, found, err := h.feedbackUC.UpdateReply(ctx, sess.EditTarget, text)
	if err != nil {
		h.sendTracked(sess, chatID, "Не удалось сохранить ответ. Попробуйте ещё раз:", nil)
		return
	}

	sess.Flush(h.msngr)
	h.sessions.Clear(chatID)
	if !found {
		h.reply(chatID, "Запись уже удалена.")
		return
	}
	if warnings := report.Warnings(); len(warnings) > 0 {
		h.reply(chatID, "Ответ сохранён.\n"+strings.Join(warnings, "\n"))
	}
}

func (h *Handler) onBulkList(ctx context.Context, chatID int64, sess *session.Session, msg *tgbotapi.Message, text string) {
	h.trackIncoming(sess, msg)

	var names []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		h.sendTracked(sess, chatID, "Пусто. Пришлите список блюд строками.", nil)
		return
	}

	added := 0
	for _, name := range names {
		if err := h.dishRepo.UpsertDish(ctx, name, dishes.Normalize(name)); err != nil {
			h.log.Error().Err(err).Str("dish", name).Msg("не удалось импортировать блюдо")
			continue
		}
		added++
	}

	sess.Flush(h.msngr)
	h.sessions.Clear(chatID)
	h.reply(chatID, fmt.Sprintf("✅ Импортировал блюд: %d", added))
}

func (h *Handler) onBroadcastText(ctx context.Context, chatID int64, sess *session.Session, msg *tgbotapi.Message, text string) {
	h.trackIncoming(sess, msg)
	if text == "" {
		h.sendTracked(sess, chatID, "Текст рассылки пустой. Пришлите текст:", nil)
		return
	}

	recipients, err := h.subs.ListSubscribers(ctx)
	if err != nil {
		h.sendTracked(sess, chatID, "Не удалось получить подписчиков. Попробуйте ещё раз:", nil)
		return
	}

	sess.Flush(h.msngr)
	h.sessions.Clear(chatID)
	sent, failed := h.dispatcher.Send(ctx, text, recipients)
	h.reply(chatID, fmt.Sprintf("📣 Рассылка завершена: отправлено %d, ошибок %d", sent, failed))
}

func (h *Handler) handleDishAdd(ctx context.Context, chatID, userID int64, name string) {
	if !h.isAdmin(userID) {
		h.reply(chatID, "Недостаточно прав.")
		return
	}
	if name == "" {
		h.reply(chatID, "Использование: /dadd Название блюда")
		return
	}
	if err := h.dishRepo.UpsertDish(ctx, name, dishes.Normalize(name)); err != nil {
		h.reply(chatID, "Не удалось добавить блюдо. Попробуйте позже.")
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Добавил: %s", name))
}

func (h *Handler) handleDishDelete(ctx context.Context, chatID, userID int64, name string) {
	if !h.isAdmin(userID) {
		h.reply(chatID, "Недостаточно прав.")
		return
	}
	if name == "" {
		h.reply(chatID, "Использование: /ddel Название блюда")
		return
	}
	if err := h.dishRepo.DeleteDish(ctx, dishes.Normalize(name)); err != nil {
		h.reply(chatID, "Не удалось удалить блюдо. Попробуйте позже.")
		return
	}
	h.reply(chatID, fmt.Sprintf("🗑 Удалил (если было): %s", name))
}

func (h *Handler) handleDishCount(ctx context.Context, chatID, userID int64) {
	if !h.isAdmin(userID) {
		h.reply(chatID, "Недостаточно прав.")
		return
	}
	count, err := h.dishRepo.CountDishes(ctx)
	if err != nil {
		h.reply(chatID, "Не удалось посчитать блюда. Попробуйте позже.")
		return
	}
	h.reply(chatID, fmt.Sprintf("🍽 Блюд в базе: %d", count))
}

func (h *Handler) handleBulkStart(chatID, userID int64, msg *tgbotapi.Message) {
	if !h.isAdmin(userID) {
		h.reply(chatID, "Недостаточно прав.")
		return
	}
	sess := h.sessions.Get(chatID)
	sess.Flush(h.msngr)
	sess.Reset()
	sess.State = session.StateBulkDishes
	h.trackIncoming(sess, msg)
	h.sendTracked(sess, chatID, "Отправьте одним сообщением список блюд (по одному в строке).", removeKeyboard())
}

func (h *Handler) handleBroadcastStart(chatID, userID int64, msg *tgbotapi.Message) {
	if !h.isAdmin(userID) {
		h.reply(chatID, "Недостаточно прав.")
		return
	}
	sess := h.sessions.Get(chatID)
	sess.Flush(h.msngr)
	sess.Reset()
	sess.State = session.StateBroadcast
	h.trackIncoming(sess, msg)
	h.sendTracked(sess, chatID, "Отправьте текст рассылки одним сообщением:", nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case data == "new":
		h.startFlow(chatID, nil)
	case strings.HasPrefix(data, "edit:"):
		id := parseID(data)
		if id == 0 {
			break
		}
		sess := h.sessions.Get(chatID)
		sess.Flush(h.msngr)
		sess.Reset()
		sess.State = session.StateEditReply
		sess.EditTarget = id
		h.sendTracked(sess, chatID, "Введите ответ кухни (сообщением):", nil)
	case strings.HasPrefix(data, "del:"):
		id := parseID(data)
		if id == 0 {
			break
		}
		sess := h.sessions.Get(chatID)
		h.sendTracked(sess, chatID, fmt.Sprintf("Удалить запись #%d?", id), deleteConfirmKeyboard(id))
	case strings.HasPrefix(data, "del_yes:"):
		h.handleDelete(ctx, chatID, parseID(data))
	case data == "del_no":
		sess := h.sessions.Get(chatID)
		sess.Flush(h.msngr)
		h.sessions.Clear(chatID)
	case data == "dish_ok":
		h.confirmNewDish(chatID)
	case data == "dish_retry":
		h.retryDish(chatID)
	}

	if err := h.msngr.AnswerCallback(cb.ID); err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleDelete(ctx context.Context, chatID, id int64) {
	if id == 0 {
		return
	}
	report, err := h.feedbackUC.Delete(ctx, id)
	sess := h.sessions.Get(chatID)
	sess.Flush(h.msngr)
	h.sessions.Clear(chatID)
	if err != nil {
		h.reply(chatID, "Не удалось удалить запись. Попробуйте позже.")
		return
	}
	text := fmt.Sprintf("🗑 Запись #%d удалена.", id)
	if warnings := report.Warnings(); len(warnings) > 0 {
		text += "\n" + strings.Join(warnings, "\n")
	}
	h.reply(chatID, text)
}

func (h *Handler) confirmNewDish(chatID int64) {
	sess := h.sessions.Get(chatID)
	if sess.State != session.StateNewDishConfirm || sess.PendingDish == "" {
		return
	}
	sess.Dish = sess.PendingDish
	sess.PendingDish = ""
	sess.State = session.StateComment
	h.sendTracked(sess, chatID, "2) Комментарий гостя:", removeKeyboard())
}

func (h *Handler) retryDish(chatID int64) {
	sess := h.sessions.Get(chatID)
	if sess.State != session.StateNewDishConfirm {
		return
	}
	sess.PendingDish = ""
	sess.State = session.StateDish
	h.sendTracked(sess, chatID, "1) Введи слово или буквы из названия блюда:", nil)
}

// sendTracked шлёт служебное сообщение и запоминает его для зачистки.
func (h *Handler) sendTracked(sess *session.Session, chatID int64, text string, markup any) {
	ref, err := h.msngr.SendWithMarkup(chatID, text, markup)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
		return
	}
	sess.Track(ref)
}

// trackIncoming запоминает сообщение пользователя для зачистки.
func (h *Handler) trackIncoming(sess *session.Session, msg *tgbotapi.Message) {
	if msg == nil {
		return
	}
	sess.Track(domain.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID})
}

// reply шлёт обычное сообщение без отслеживания.
func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.msngr.SendText(chatID, text); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
	}
}

func (h *Handler) buildHelpMessage() string {
	lines := []string{
		"🤖 Помощь по боту",
		"",
		"📝 Запись обратной связи",
		"• /start или /new — начать новую запись",
		"• шаги: блюдо → комментарий → ответ кухни (или /skip)",
		"• ✏️ Ответ кухни можно добавить позже кнопкой на карточке",
		"• 🗑 Удалить — убрать запись отовсюду",
		"",
		"📣 Рассылки",
		"• /subscribe — получать объявления",
		"• /unsubscribe — отключить рассылку",
		"",
		"🍽 Блюда (доступно админам)",
		"• /dbulk — загрузить список блюд (по одному в строке)",
		"• /dadd Название — добавить одно блюдо",
		"• /ddel Название — удалить блюдо",
		"• /dlist — сколько блюд в базе",
		"• /broadcast — отправить объявление подписчикам",
		"",
		"⚙️ Сервис",
		"• /cancel — отменить текущий шаг",
		"• /whoami — ваш user_id",
	}
	return strings.Join(lines, "\n")
}

func parseID(data string) int64 {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0
	}
	id, _ := strconv.ParseInt(parts[1], 10, 64)
	return id
}
