package config

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		// GroupChatID — необязательный канал-зеркало для записей с ответом кухни.
		// Ноль означает, что зеркалирование отключено.
		GroupChatID int64 `envconfig:"TG_GROUP_CHAT_ID"`
	} `envconfig:""`

	AdminIDs string `envconfig:"ADMIN_IDS"`

	PGDSN string `envconfig:"PG_DSN"`

	Sheets struct {
		CredentialsJSON string `envconfig:"GOOGLE_CREDENTIALS_JSON"`
		SpreadsheetID   string `envconfig:"GOOGLE_SHEET_ID"`
		Worksheet       string `envconfig:"GOOGLE_WORKSHEET" default:"Sheet1"`
	} `envconfig:""`

	Limits struct {
		DishSuggest    int           `envconfig:"DISH_SUGGEST_LIMIT" default:"10"`
		BroadcastDelay time.Duration `envconfig:"BROADCAST_DELAY" default:"50ms"`
		SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// AdminSet разбирает ADMIN_IDS в множество идентификаторов.
func (c AppConfig) AdminSet() map[int64]struct{} {
	set := make(map[int64]struct{})
	for _, part := range strings.Split(c.AdminIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
