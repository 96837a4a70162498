package sheets

import (
	"testing"
	"time"

	"guest-feedback-bot/internal/domain"
)

func TestIDMatches(t *testing.T) {
	cases := []struct {
		cell    string
		target  string
		matches bool
	}{
		{"123", "123", true},
		{"123.0", "123", true},
		{" 123 ", "123", true},
		{"1230", "123", false},
		{"12", "123", false},
		{"", "123", false},
	}
	for _, c := range cases {
		if got := IDMatches(c.cell, c.target); got != c.matches {
			t.Fatalf("IDMatches(%q, %q): ожидали %v", c.cell, c.target, c.matches)
		}
	}
}

func TestRowValues(t *testing.T) {
	reply := "переделали"
	fb := domain.Feedback{
		ID:           42,
		Date:         time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		DishName:     "Борщ",
		GuestComment: "остыл",
		KitchenReply: &reply,
	}
	row := rowValues(fb)
	if len(row) != 5 {
		t.Fatalf("ожидали 5 колонок, получили %d", len(row))
	}
	if row[0] != "42" {
		t.Fatalf("id пишется строкой, получили %v", row[0])
	}
	if row[1] != "30/08/26" {
		t.Fatalf("ожидали дату 30/08/26, получили %v", row[1])
	}
	if row[4] != "переделали" {
		t.Fatalf("ожидали ответ кухни, получили %v", row[4])
	}
}

func TestRowValuesEmptyReply(t *testing.T) {
	fb := domain.Feedback{ID: 1, Date: time.Now(), DishName: "Плов", GuestComment: "ок"}
	row := rowValues(fb)
	if row[4] != "" {
		t.Fatalf("без ответа кухни колонка пустая, получили %v", row[4])
	}
}
