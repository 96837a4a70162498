package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strings"

	"guest-feedback-bot/internal/adapters/repo"
	"guest-feedback-bot/internal/infra/config"
	"guest-feedback-bot/internal/infra/db"
	"guest-feedback-bot/internal/infra/log"
	"guest-feedback-bot/internal/usecase/dishes"
)

// Импортёр каталога блюд: читает файл со списком (по одному блюду в
// строке) и заливает его в базу. Повторные запуски безопасны.
func main() {
	path := flag.String("file", "dishes.txt", "файл со списком блюд")
	flag.Parse()

	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	f, err := os.Open(*path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *path).Msg("не удалось открыть файл")
	}
	defer f.Close()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	ctx := context.Background()

	added := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		if err := repoAdapter.UpsertDish(ctx, name, dishes.Normalize(name)); err != nil {
			logger.Error().Err(err).Str("dish", name).Msg("не удалось импортировать блюдо")
			continue
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		logger.Fatal().Err(err).Msg("ошибка чтения файла")
	}

	logger.Info().Int("imported", added).Msg("импорт завершён")
}
