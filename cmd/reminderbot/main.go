package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"reminder-bot/internal/bot"
	"reminder-bot/internal/config"
	"reminder-bot/internal/logger"
	"reminder-bot/internal/repository"
	"reminder-bot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl := logger.New(cfg.Debug)
	defer zl.Sync()

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		zl.Fatal("telegram api", zap.Error(err))
	}
	api.Debug = cfg.Debug

	notifier := bot.NewNotifier(api, categoryRepo, cfg.StoreTimeout(), zl.Named("notifier"))
	scheduler := service.NewSchedulerService(cfg.Location(), taskRepo, userRepo, notifier, cfg.StoreTimeout(), zl.Named("scheduler"))

	categorySvc := service.NewCategoryService(categoryRepo)
	taskSvc := service.NewTaskService(taskRepo, categoryRepo, scheduler, zl.Named("tasks"))

	restored, err := scheduler.RescheduleAll(ctx)
	if err != nil {
		zl.Fatal("restore schedule", zap.Error(err))
	}
	zl.Info("schedule restored", zap.Int("tasks", restored))

	scheduler.Start()
	defer scheduler.Stop()

	telegramBot := bot.New(api, userRepo, categorySvc, taskSvc, cfg.SessionTTL(), zl.Named("bot"))
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("bot stopped", zap.Error(err))
	}
	zl.Info("shutdown complete")
}
