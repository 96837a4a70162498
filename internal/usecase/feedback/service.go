package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"guest-feedback-bot/internal/domain"
	"guest-feedback-bot/internal/infra/metrics"
	"guest-feedback-bot/internal/usecase/dishes"
)

// Report накапливает исходы best-effort шагов. Эти ошибки логируются и
// показываются как предупреждения, но никогда не откатывают запись:
// источник истины — реляционное хранилище.
type Report struct {
	Card  error
	Sheet error
	Group error
}

// Warnings возвращает человекочитаемые предупреждения для пользователя.
func (r Report) Warnings() []string {
	var w []string
	if r.Card != nil {
		w = append(w, "⚠️ не удалось обновить карточку")
	}
	if r.Sheet != nil {
		w = append(w, "⚠️ не удалось обновить таблицу")
	}
	if r.Group != nil {
		w = append(w, "⚠️ не удалось обновить сообщение в группе")
	}
	return w
}

// CardMarkup строит клавиатуру карточки для записи. Передаётся из
// бот-адаптера, чтобы не тянуть UI в бизнес-логику.
type CardMarkup func(id int64) any

// Service координирует запись ОС между хранилищем, карточкой,
// таблицей и группой. Только он трогает все четыре поверхности.
type Service struct {
	repo       domain.FeedbackRepo
	dishRepo   domain.DishRepo
	sheet      domain.SheetMirror
	msngr      domain.Messenger
	log        zerolog.Logger
	groupChat  int64
	cardMarkup CardMarkup
}

// NewService создаёт координатор. groupChat == 0 отключает зеркалирование
// в группу; sheet == nil отключает таблицу.
func NewService(repo domain.FeedbackRepo, dishRepo domain.DishRepo, sheet domain.SheetMirror, msngr domain.Messenger, log zerolog.Logger, groupChat int64, cardMarkup CardMarkup) *Service {
	return &Service{
		repo:       repo,
		dishRepo:   dishRepo,
		sheet:      sheet,
		msngr:      msngr,
		log:        log,
		groupChat:  groupChat,
		cardMarkup: cardMarkup,
	}
}

// Create проводит запись по всем поверхностям: блюдо в каталог, запись в
// хранилище, карточка в личный чат, строка в таблицу, зеркало в группу.
// Жёстко фатальны только запись блюда и вставка записи.
func (s *Service) Create(ctx context.Context, chatID int64, fb domain.Feedback) (domain.Feedback, Report, error) {
	var report Report

	if err := s.dishRepo.UpsertDish(ctx, fb.DishName, dishes.Normalize(fb.DishName)); err != nil {
		return domain.Feedback{}, report, fmt.Errorf("сохранение блюда: %w", err)
	}

	id, err := s.repo.CreateFeedback(ctx, fb)
	if err != nil {
		return domain.Feedback{}, report, fmt.Errorf("создание записи: %w", err)
	}
	fb.ID = id
	metrics.FeedbackCreated.Inc()

	ref, err := s.msngr.SendWithMarkup(chatID, RenderCard(fb), s.cardMarkup(id))
	if err != nil {
		report.Card = err
		metrics.MirrorErrors.WithLabelValues("card").Inc()
		s.log.Error().Err(err).Int64("id", id).Msg("не удалось отправить карточку")
	} else {
		fb.PrivateRef = &ref
		if err := s.repo.SetPrivateRef(ctx, id, ref); err != nil {
			report.Card = err
			s.log.Error().Err(err).Int64("id", id).Msg("не удалось сохранить ссылку на карточку")
		}
	}

	if s.sheet != nil {
		if err := s.sheet.AppendRow(ctx, fb); err != nil {
			report.Sheet = err
			metrics.MirrorErrors.WithLabelValues("sheet").Inc()
			s.log.Error().Err(err).Int64("id", id).Msg("не удалось записать строку в таблицу")
		}
	}

	report.Group = s.publishGroupMirror(ctx, &fb)
	return fb, report, nil
}

// UpdateReply меняет ответ кухни и обновляет внешние поверхности.
// Исчезнувшая запись — идемпотентный успех: found=false без ошибки.
func (s *Service) UpdateReply(ctx context.Context, id int64, reply string) (domain.Feedback, Report, bool, error) {
	var report Report

	if err := s.repo.UpdateKitchenReply(ctx, id, reply); err != nil {
		return domain.Feedback{}, report, false, fmt.Errorf("обновление ответа: %w", err)
	}

	fb, err := s.repo.GetFeedback(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Feedback{}, report, false, nil
	}
	if err != nil {
		return domain.Feedback{}, report, false, fmt.Errorf("чтение записи: %w", err)
	}
	metrics.FeedbackEdited.Inc()

	// Карточка правится на месте, повторная отправка запрещена.
	if fb.PrivateRef != nil {
		if err := s.msngr.EditText(*fb.PrivateRef, RenderCard(fb), s.cardMarkup(id)); err != nil {
			report.Card = err
			metrics.MirrorErrors.WithLabelValues("card").Inc()
			s.log.Error().Err(err).Int64("id", id).Msg("не удалось обновить карточку")
		}
	}

	if s.sheet != nil {
		appended, err := s.sheet.UpdateRow(ctx, fb)
		if err != nil {
			report.Sheet = err
			metrics.MirrorErrors.WithLabelValues("sheet").Inc()
			s.log.Error().Err(err).Int64("id", id).Msg("не удалось обновить строку таблицы")
		} else if appended {
			s.log.Warn().Int64("id", id).Msg("строки в таблице не было, добавлена заново")
		}
	}

	report.Group = s.publishGroupMirror(ctx, &fb)
	return fb, report, true, nil
}

// Delete убирает запись отовсюду. Порядок жёсткий: зеркало в группе,
// карточка, строка таблицы и лишь затем запись в хранилище — чтобы сбой
// посередине оставил запись, указывающую на исчезнувшие сообщения, а не
// осиротевшие артефакты без записи.
func (s *Service) Delete(ctx context.Context, id int64) (Report, error) {
	var report Report

	fb, err := s.repo.GetFeedback(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("чтение записи: %w", err)
	}

	if fb.GroupRef != nil {
		if err := s.msngr.DeleteMessage(*fb.GroupRef); err != nil {
			report.Group = err
			s.log.Warn().Err(err).Int64("id", id).Msg("не удалось удалить сообщение в группе")
		}
	}
	if fb.PrivateRef != nil {
		if err := s.msngr.DeleteMessage(*fb.PrivateRef); err != nil {
			report.Card = err
			s.log.Warn().Err(err).Int64("id", id).Msg("не удалось удалить карточку")
		}
	}
	if s.sheet != nil {
		if err := s.sheet.DeleteRow(ctx, id); err != nil {
			report.Sheet = err
			metrics.MirrorErrors.WithLabelValues("sheet").Inc()
			s.log.Warn().Err(err).Int64("id", id).Msg("не удалось удалить строку таблицы")
		}
	}

	if err := s.repo.DeleteFeedback(ctx, id); err != nil {
		return report, fmt.Errorf("удаление записи: %w", err)
	}
	metrics.FeedbackDeleted.Inc()
	return report, nil
}

// publishGroupMirror отправляет или правит зеркало записи в группе.
// Запись без ответа кухни в группу не попадает.
func (s *Service) publishGroupMirror(ctx context.Context, fb *domain.Feedback) error {
	if s.groupChat == 0 || !fb.HasReply() {
		return nil
	}

	text := RenderCard(*fb)
	if fb.GroupRef != nil {
		if err := s.msngr.EditText(*fb.GroupRef, text, nil); err == nil {
			return nil
		}
		// Правка не удалась (зеркало удалено руками) — шлём заново.
	}

	ref, err := s.msngr.SendText(s.groupChat, text)
	if err != nil {
		metrics.MirrorErrors.WithLabelValues("group").Inc()
		s.log.Error().Err(err).Int64("id", fb.ID).Msg("не удалось отправить зеркало в группу")
		return err
	}
	fb.GroupRef = &ref
	if err := s.repo.SetGroupRef(ctx, fb.ID, ref); err != nil {
		s.log.Error().Err(err).Int64("id", fb.ID).Msg("не удалось сохранить ссылку на зеркало")
		return err
	}
	return nil
}
