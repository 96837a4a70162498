package dishes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stubDishRepo struct {
	catalog   []string
	substrErr error
	tokensErr error
	substrLog []string
	tokensLog [][]string
}

func (s *stubDishRepo) UpsertDish(context.Context, string, string) error { return nil }
func (s *stubDishRepo) DeleteDish(context.Context, string) error         { return nil }
func (s *stubDishRepo) CountDishes(context.Context) (int, error)         { return len(s.catalog), nil }

func (s *stubDishRepo) SearchDishes(_ context.Context, substr string, limit int) ([]string, error) {
	s.substrLog = append(s.substrLog, substr)
	if s.substrErr != nil {
		return nil, s.substrErr
	}
	var out []string
	for _, name := range s.catalog {
		if strings.Contains(Normalize(name), substr) {
			out = append(out, name)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubDishRepo) SearchDishesAllTokens(_ context.Context, tokens []string, limit int) ([]string, error) {
	s.tokensLog = append(s.tokensLog, tokens)
	if s.tokensErr != nil {
		return nil, s.tokensErr
	}
	var out []string
	for _, name := range s.catalog {
		norm := Normalize(name)
		all := true
		for _, tok := range tokens {
			if !strings.Contains(norm, tok) {
				all = false
				break
			}
		}
		if all {
			out = append(out, name)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestMatcher(repo *stubDishRepo) *Matcher {
	return NewMatcher(repo, zerolog.Nop(), 10)
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Цезарь  с курицей ": "цезарь с курицей",
		"Ёжики":                "ежики",
		"БОРЩ":                 "борщ",
	}
	for input, expected := range cases {
		if got := Normalize(input); got != expected {
			t.Fatalf("ожидали %q, получили %q", expected, got)
		}
	}
	for input := range cases {
		once := Normalize(input)
		if Normalize(once) != once {
			t.Fatalf("нормализация не идемпотентна для %q", input)
		}
	}
}

func TestResolveWholeQueryFirst(t *testing.T) {
	repo := &stubDishRepo{catalog: []string{"Цезарь с курицей", "Цезарь с креветками"}}
	m := newTestMatcher(repo)

	found, err := m.Resolve(context.Background(), "цезарь")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("ожидали 2 кандидата, получили %d", len(found))
	}
	if len(repo.tokensLog) != 0 {
		t.Fatalf("второй ярус не должен вызываться при успехе первого")
	}
}

func TestResolveFallsBackToTokens(t *testing.T) {
	repo := &stubDishRepo{catalog: []string{"Греческий салат"}}
	m := newTestMatcher(repo)

	found, err := m.Resolve(context.Background(), "салат греческий")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(found) != 1 || found[0] != "Греческий салат" {
		t.Fatalf("ожидали фолбэк по токенам, получили %v", found)
	}
}

func TestResolveFallsBackToFirstToken(t *testing.T) {
	repo := &stubDishRepo{catalog: []string{"Цезарь классический"}}
	m := newTestMatcher(repo)

	found, err := m.Resolve(context.Background(), "цезарь фирменный особый")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("ожидали кандидата по первому токену, получили %v", found)
	}
}

func TestResolveSingleTokenSkipsLaterTiers(t *testing.T) {
	repo := &stubDishRepo{catalog: []string{"Борщ"}}
	m := newTestMatcher(repo)

	if _, err := m.Resolve(context.Background(), "плов"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.substrLog) != 1 {
		t.Fatalf("для однословного запроса ожидали один вызов, получили %d", len(repo.substrLog))
	}
}

func TestResolveErrorOnlyWhenAllTiersFailed(t *testing.T) {
	boom := errors.New("база недоступна")
	repo := &stubDishRepo{substrErr: boom, tokensErr: boom}
	m := newTestMatcher(repo)

	if _, err := m.Resolve(context.Background(), "салат греческий"); !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("ожидали ErrSearchUnavailable, получили %v", err)
	}

	// Отказ одного яруса при рабочем следующем — не ошибка.
	repo = &stubDishRepo{catalog: []string{"Греческий салат"}, substrErr: boom}
	m = newTestMatcher(repo)
	found, err := m.Resolve(context.Background(), "салат греческий")
	if err != nil {
		t.Fatalf("не ожидали ошибку при частичном отказе: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("ожидали результат со второго яруса")
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	repo := &stubDishRepo{}
	m := newTestMatcher(repo)
	found, err := m.Resolve(context.Background(), "   ")
	if err != nil || found != nil {
		t.Fatalf("пустой запрос должен давать пустой результат без ошибки")
	}
	if len(repo.substrLog) != 0 {
		t.Fatalf("пустой запрос не должен ходить в хранилище")
	}
}

func TestDecide(t *testing.T) {
	if Decide("борщ", nil) != OutcomeUnknown {
		t.Fatalf("пустой список — новое блюдо")
	}
	if Decide("Борщ ", []string{"борщ"}) != OutcomeAccept {
		t.Fatalf("единственный посимвольно равный кандидат принимается автоматически")
	}
	if Decide("борщ", []string{"Борщ украинский"}) != OutcomeSuggest {
		t.Fatalf("единственный, но не равный кандидат — подсказка")
	}
	if Decide("борщ", []string{"борщ", "Борщ украинский"}) != OutcomeSuggest {
		t.Fatalf("несколько кандидатов — подсказка, даже при точном совпадении")
	}
}

func TestDedupe(t *testing.T) {
	out := dedupe([]string{"Борщ", "борщ", "Ёжики", "ежики", "Плов"}, 2)
	if len(out) != 2 {
		t.Fatalf("ожидали срез до лимита, получили %v", out)
	}
	if out[0] != "Борщ" || out[1] != "Ёжики" {
		t.Fatalf("порядок первого вхождения нарушен: %v", out)
	}
}
