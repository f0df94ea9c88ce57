package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notes-bot/internal/bot"
	"notes-bot/internal/config"
	"notes-bot/internal/repository"
	"notes-bot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	noteRepo := repository.NewNoteRepository(db)

	noteSvc := service.NewNoteService(userRepo, noteRepo)
	digestSvc := service.NewDigestService(noteRepo)

	telegramBot, err := bot.New(cfg.BotToken, userRepo, noteSvc, digestSvc, &cfg)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(cfg.Location)
	scheduled, err := scheduler.ScheduleDigest(cfg.DigestTime, cfg.DigestInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("digest: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("schedule digest: %v", err)
	}
	if scheduled {
		log.Printf("[info] notes digest scheduled (%d job)", scheduler.Entries())
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Println("Notes bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
