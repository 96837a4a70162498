package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"guest-feedback-bot/internal/adapters/bot"
	"guest-feedback-bot/internal/adapters/repo"
	"guest-feedback-bot/internal/adapters/sheets"
	"guest-feedback-bot/internal/adapters/telegram"
	"guest-feedback-bot/internal/infra/config"
	"guest-feedback-bot/internal/infra/db"
	"guest-feedback-bot/internal/infra/log"
	"guest-feedback-bot/internal/infra/metrics"
	"guest-feedback-bot/internal/usecase/broadcast"
	"guest-feedback-bot/internal/usecase/dishes"
	"guest-feedback-bot/internal/usecase/feedback"
	"guest-feedback-bot/internal/usecase/session"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	mirror, err := sheets.NewMirror(ctx, logger, []byte(cfg.Sheets.CredentialsJSON), cfg.Sheets.SpreadsheetID, cfg.Sheets.Worksheet)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к Google Sheets")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	msngr := telegram.NewMessenger(botAPI, logger)

	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный webhook URL")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось установить webhook")
		}
	}

	matcher := dishes.NewMatcher(repoAdapter, logger, cfg.Limits.DishSuggest)
	feedbackService := feedback.NewService(repoAdapter, repoAdapter, mirror, msngr, logger, cfg.Telegram.GroupChatID, func(id int64) any {
		return bot.CardKeyboard(id)
	})
	dispatcher := broadcast.NewDispatcher(msngr, logger, cfg.Limits.BroadcastDelay)
	sessions := session.NewStore(cfg.Limits.SessionTTL)

	h := bot.NewHandler(msngr, logger, matcher, feedbackService, repoAdapter, repoAdapter, dispatcher, sessions, cfg.AdminSet())

	// Брошенные диалоги вычищаются фоном вместе с их служебными сообщениями.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range sessions.Sweep() {
					s.Flush(msngr)
				}
			}
		}
	}()

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("бот запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
