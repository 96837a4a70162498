package dishes

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"guest-feedback-bot/internal/domain"
)

// ErrSearchUnavailable возвращается, когда каталог не ответил ни на одном ярусе поиска.
var ErrSearchUnavailable = errors.New("поиск по каталогу блюд недоступен")

// MinQueryLen — минимальная длина запроса для поиска блюда.
const MinQueryLen = 2

// Matcher сопоставляет свободный ввод гостя с каталогом блюд.
type Matcher struct {
	repo  domain.DishRepo
	log   zerolog.Logger
	limit int
}

// NewMatcher создаёт матчер с лимитом подсказок.
func NewMatcher(repo domain.DishRepo, log zerolog.Logger, limit int) *Matcher {
	return &Matcher{repo: repo, log: log, limit: limit}
}

// Normalize приводит название к форме для сопоставления: схлопывает
// пробелы, переводит в нижний регистр и склеивает ё с е.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "ё", "е")
}

// Resolve ищет кандидатов в три яруса: весь запрос как подстрока, затем
// AND по токенам длиной от двух символов, затем только первый токен.
// Каждый следующий ярус пробуется лишь при пустом предыдущем. Отказ
// хранилища на отдельном ярусе деградирует до пустого результата; ошибка
// возвращается только если каталог не ответил ни разу.
func (m *Matcher) Resolve(ctx context.Context, raw string) ([]string, error) {
	query := Normalize(raw)
	if query == "" {
		return nil, nil
	}

	attempts, failures := 0, 0

	attempts++
	found, err := m.repo.SearchDishes(ctx, query, m.limit)
	if err != nil {
		failures++
		m.log.Warn().Err(err).Str("query", query).Msg("поиск по всему запросу не удался")
	}
	if len(found) > 0 {
		return dedupe(found, m.limit), nil
	}

	tokens := searchTokens(query)
	if len(tokens) > 1 {
		attempts++
		found, err = m.repo.SearchDishesAllTokens(ctx, tokens, m.limit)
		if err != nil {
			failures++
			m.log.Warn().Err(err).Str("query", query).Msg("поиск по токенам не удался")
		}
		if len(found) > 0 {
			return dedupe(found, m.limit), nil
		}
	}

	if len(tokens) > 0 && tokens[0] != query {
		attempts++
		found, err = m.repo.SearchDishes(ctx, tokens[0], m.limit)
		if err != nil {
			failures++
			m.log.Warn().Err(err).Str("token", tokens[0]).Msg("поиск по первому токену не удался")
		}
		if len(found) > 0 {
			return dedupe(found, m.limit), nil
		}
	}

	if failures == attempts {
		return nil, ErrSearchUnavailable
	}
	return nil, nil
}

// Outcome описывает решение по результату поиска.
type Outcome int

const (
	// OutcomeUnknown — совпадений нет, нужно явное подтверждение нового блюда.
	OutcomeUnknown Outcome = iota
	// OutcomeAccept — единственный кандидат посимвольно равен запросу.
	OutcomeAccept
	// OutcomeSuggest — есть кандидаты, пользователь выбирает.
	OutcomeSuggest
)

// Decide применяет политику автопринятия к результату Resolve.
func Decide(raw string, options []string) Outcome {
	if len(options) == 0 {
		return OutcomeUnknown
	}
	if len(options) == 1 && Normalize(options[0]) == Normalize(raw) {
		return OutcomeAccept
	}
	return OutcomeSuggest
}

func searchTokens(query string) []string {
	var tokens []string
	for _, tok := range strings.Fields(query) {
		if len([]rune(tok)) >= MinQueryLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func dedupe(names []string, limit int) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		key := Normalize(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return out
}
