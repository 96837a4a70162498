package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"guest-feedback-bot/internal/domain"
	"guest-feedback-bot/internal/infra/metrics"
)

// Mirror зеркалирует записи ОС в Google-таблицу: одна строка на запись,
// колонки [id, дата, блюдо, комментарий, ответ].
type Mirror struct {
	svc           *sheetsapi.Service
	log           zerolog.Logger
	spreadsheetID string
	worksheet     string

	mu      sync.Mutex
	sheetID int64
	gotID   bool
}

var _ domain.SheetMirror = (*Mirror)(nil)

// NewMirror создаёт клиент по JSON сервисного аккаунта.
func NewMirror(ctx context.Context, log zerolog.Logger, credentialsJSON []byte, spreadsheetID, worksheet string) (*Mirror, error) {
	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("создание клиента таблиц: %w", err)
	}
	return &Mirror{svc: svc, log: log, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

func rowValues(fb domain.Feedback) []interface{} {
	return []interface{}{
		strconv.FormatInt(fb.ID, 10),
		fb.Date.Format(domain.DateLayout),
		fb.DishName,
		fb.GuestComment,
		fb.Reply(),
	}
}

// AppendRow дописывает строку записи в конец листа.
func (m *Mirror) AppendRow(ctx context.Context, fb domain.Feedback) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{rowValues(fb)}}
	start := time.Now()
	_, err := m.svc.Spreadsheets.Values.
		Append(m.spreadsheetID, m.worksheet+"!A:E", vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	metrics.ObserveNetworkRequest("sheets", "values_append", m.worksheet, start, err)
	if err != nil {
		return fmt.Errorf("добавление строки: %w", err)
	}
	return nil
}

// UpdateRow находит строку по колонке id и обновляет её целиком.
// Если строки нет, дописывает новую — обновление не теряется молча.
func (m *Mirror) UpdateRow(ctx context.Context, fb domain.Feedback) (bool, error) {
	row, err := m.findRow(ctx, fb.ID)
	if err != nil {
		return false, err
	}
	if row == 0 {
		m.log.Warn().Int64("id", fb.ID).Msg("sheets: строка не найдена, дописываем заново")
		if err := m.AppendRow(ctx, fb); err != nil {
			return false, err
		}
		return true, nil
	}

	vr := &sheetsapi.ValueRange{Values: [][]interface{}{rowValues(fb)}}
	rng := fmt.Sprintf("%s!A%d:E%d", m.worksheet, row, row)
	start := time.Now()
	_, err = m.svc.Spreadsheets.Values.
		Update(m.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	metrics.ObserveNetworkRequest("sheets", "values_update", m.worksheet, start, err)
	if err != nil {
		return false, fmt.Errorf("обновление строки: %w", err)
	}
	return false, nil
}

// DeleteRow удаляет строку записи. Отсутствующая строка не считается ошибкой.
func (m *Mirror) DeleteRow(ctx context.Context, id int64) error {
	row, err := m.findRow(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return nil
	}
	sheetID, err := m.resolveSheetID(ctx)
	if err != nil {
		return err
	}
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			DeleteDimension: &sheetsapi.DeleteDimensionRequest{
				Range: &sheetsapi.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	start := time.Now()
	_, err = m.svc.Spreadsheets.BatchUpdate(m.spreadsheetID, req).Context(ctx).Do()
	metrics.ObserveNetworkRequest("sheets", "delete_row", m.worksheet, start, err)
	if err != nil {
		return fmt.Errorf("удаление строки: %w", err)
	}
	return nil
}

// findRow сканирует колонку id и возвращает номер строки (1-based), 0 если нет.
func (m *Mirror) findRow(ctx context.Context, id int64) (int, error) {
	start := time.Now()
	resp, err := m.svc.Spreadsheets.Values.
		Get(m.spreadsheetID, m.worksheet+"!A:A").
		Context(ctx).Do()
	metrics.ObserveNetworkRequest("sheets", "values_get", m.worksheet, start, err)
	if err != nil {
		return 0, fmt.Errorf("чтение колонки id: %w", err)
	}
	target := strconv.FormatInt(id, 10)
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		cell, ok := row[0].(string)
		if !ok {
			cell = fmt.Sprint(row[0])
		}
		if IDMatches(cell, target) {
			return i + 1, nil
		}
	}
	return 0, nil
}

// IDMatches сравнивает значение ячейки с идентификатором, терпя хвост ".0",
// который бэкенд таблиц дописывает числовым ячейкам.
func IDMatches(cell, target string) bool {
	cell = strings.TrimSpace(cell)
	if cell == target {
		return true
	}
	return strings.TrimSuffix(cell, ".0") == target
}

func (m *Mirror) resolveSheetID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gotID {
		return m.sheetID, nil
	}
	start := time.Now()
	doc, err := m.svc.Spreadsheets.Get(m.spreadsheetID).Context(ctx).Do()
	metrics.ObserveNetworkRequest("sheets", "spreadsheet_get", m.worksheet, start, err)
	if err != nil {
		return 0, fmt.Errorf("чтение метаданных таблицы: %w", err)
	}
	for _, sheet := range doc.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == m.worksheet {
			m.sheetID = sheet.Properties.SheetId
			m.gotID = true
			return m.sheetID, nil
		}
	}
	return 0, fmt.Errorf("лист %q не найден", m.worksheet)
}
