package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"guest-feedback-bot/internal/domain"
	"guest-feedback-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.DishRepo = (*Postgres)(nil)
var _ domain.FeedbackRepo = (*Postgres)(nil)
var _ domain.SubscriberRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// UpsertDish сохраняет блюдо. Повторная вставка той же нормализованной формы
// молча игнорируется, поэтому конкурентные добавления не конфликтуют.
func (p *Postgres) UpsertDish(ctx context.Context, name, nameNorm string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO dishes (name, name_norm)
VALUES ($1, $2)
ON CONFLICT (name_norm) DO NOTHING
`, strings.TrimSpace(name), nameNorm)
	metrics.ObserveNetworkRequest("postgres", "dishes_upsert", "dishes", start, err)
	return err
}

// DeleteDish удаляет блюдо по нормализованному имени.
func (p *Postgres) DeleteDish(ctx context.Context, nameNorm string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM dishes WHERE name_norm=$1`, nameNorm)
	metrics.ObserveNetworkRequest("postgres", "dishes_delete", "dishes", start, err)
	return err
}

// CountDishes считает блюда в каталоге.
func (p *Postgres) CountDishes(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dishes`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "dishes_count", "dishes", start, err)
	return count, err
}

// SearchDishes ищет блюда по подстроке нормализованного имени.
func (p *Postgres) SearchDishes(ctx context.Context, substr string, limit int) ([]string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT name FROM dishes
WHERE name_norm LIKE '%' || $1 || '%'
ORDER BY name
LIMIT $2
`, substr, limit)
	metrics.ObserveNetworkRequest("postgres", "dishes_search", "dishes", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNames(rows)
}

// SearchDishesAllTokens ищет блюда, нормализованное имя которых содержит каждый токен.
func (p *Postgres) SearchDishesAllTokens(ctx context.Context, tokens []string, limit int) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT name FROM dishes
WHERE (SELECT bool_and(name_norm LIKE '%' || t || '%') FROM unnest($1::text[]) AS t)
ORDER BY name
LIMIT $2
`, tokens, limit)
	metrics.ObserveNetworkRequest("postgres", "dishes_search_tokens", "dishes", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNames(rows)
}

func scanNames(rows pgx.Rows) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateFeedback вставляет запись и возвращает её идентификатор.
func (p *Postgres) CreateFeedback(ctx context.Context, fb domain.Feedback) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var reply sql.NullString
	if fb.KitchenReply != nil {
		reply = sql.NullString{String: *fb.KitchenReply, Valid: true}
	}

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO feedback (feedback_date, dish_name, guest_comment, kitchen_reply)
VALUES ($1, $2, $3, $4)
RETURNING id
`, fb.Date, fb.DishName, fb.GuestComment, reply).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "feedback_insert", "feedback", start, err)
	return id, err
}

// GetFeedback возвращает запись по идентификатору.
func (p *Postgres) GetFeedback(ctx context.Context, id int64) (domain.Feedback, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		fb        domain.Feedback
		reply     sql.NullString
		privChat  sql.NullInt64
		privMsg   sql.NullInt64
		groupChat sql.NullInt64
		groupMsg  sql.NullInt64
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, feedback_date, dish_name, guest_comment, kitchen_reply,
       private_chat_id, private_message_id, group_chat_id, group_message_id, created_at
FROM feedback WHERE id=$1
`, id).Scan(&fb.ID, &fb.Date, &fb.DishName, &fb.GuestComment, &reply,
		&privChat, &privMsg, &groupChat, &groupMsg, &fb.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "feedback_get", "feedback", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Feedback{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Feedback{}, err
	}
	if reply.Valid {
		value := reply.String
		fb.KitchenReply = &value
	}
	if privChat.Valid && privMsg.Valid {
		fb.PrivateRef = &domain.MessageRef{ChatID: privChat.Int64, MessageID: int(privMsg.Int64)}
	}
	if groupChat.Valid && groupMsg.Valid {
		fb.GroupRef = &domain.MessageRef{ChatID: groupChat.Int64, MessageID: int(groupMsg.Int64)}
	}
	return fb, nil
}

// UpdateKitchenReply обновляет ответ кухни.
func (p *Postgres) UpdateKitchenReply(ctx context.Context, id int64, reply string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE feedback SET kitchen_reply=$2 WHERE id=$1`, id, reply)
	metrics.ObserveNetworkRequest("postgres", "feedback_update_reply", "feedback", start, err)
	return err
}

// SetPrivateRef сохраняет ссылку на карточку в личном чате.
func (p *Postgres) SetPrivateRef(ctx context.Context, id int64, ref domain.MessageRef) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE feedback SET private_chat_id=$2, private_message_id=$3 WHERE id=$1
`, id, ref.ChatID, ref.MessageID)
	metrics.ObserveNetworkRequest("postgres", "feedback_set_private_ref", "feedback", start, err)
	return err
}

// SetGroupRef сохраняет ссылку на зеркало в группе.
func (p *Postgres) SetGroupRef(ctx context.Context, id int64, ref domain.MessageRef) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE feedback SET group_chat_id=$2, group_message_id=$3 WHERE id=$1
`, id, ref.ChatID, ref.MessageID)
	metrics.ObserveNetworkRequest("postgres", "feedback_set_group_ref", "feedback", start, err)
	return err
}

// DeleteFeedback удаляет запись.
func (p *Postgres) DeleteFeedback(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM feedback WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "feedback_delete", "feedback", start, err)
	return err
}

// UpsertSubscriber регистрирует подписчика.
func (p *Postgres) UpsertSubscriber(ctx context.Context, sub domain.Subscriber) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO subscribers (chat_id, chat_type)
VALUES ($1, $2)
ON CONFLICT (chat_id) DO UPDATE SET chat_type = EXCLUDED.chat_type
`, sub.ChatID, sub.ChatType)
	metrics.ObserveNetworkRequest("postgres", "subscribers_upsert", "subscribers", start, err)
	return err
}

// DeleteSubscriber снимает подписку.
func (p *Postgres) DeleteSubscriber(ctx context.Context, chatID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM subscribers WHERE chat_id=$1`, chatID)
	metrics.ObserveNetworkRequest("postgres", "subscribers_delete", "subscribers", start, err)
	return err
}

// ListSubscribers возвращает всех подписчиков.
func (p *Postgres) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT chat_id, chat_type FROM subscribers ORDER BY chat_id`)
	metrics.ObserveNetworkRequest("postgres", "subscribers_list", "subscribers", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.ChatID, &sub.ChatType); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
