package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TGVoiceBot/internal/admin"
	"github.com/digkill/TGVoiceBot/internal/catalog"
	"github.com/digkill/TGVoiceBot/internal/config"
	"github.com/digkill/TGVoiceBot/internal/database"
	"github.com/digkill/TGVoiceBot/internal/events"
	"github.com/digkill/TGVoiceBot/internal/ledger"
	"github.com/digkill/TGVoiceBot/internal/replicate"
	"github.com/digkill/TGVoiceBot/internal/repository"
	"github.com/digkill/TGVoiceBot/internal/service"
	"github.com/digkill/TGVoiceBot/internal/storage"
	"github.com/digkill/TGVoiceBot/internal/telegram"
	"github.com/digkill/TGVoiceBot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	var uploads ledger.Ledger = ledger.NewFileLedger(cfg.UploadsLedgerPath)
	if cfg.RedisAddr != "" {
		rdb, err := ledger.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		uploads = ledger.NewRedisLedger(rdb)
		logr.Info("uploads ledger", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		logr.Info("uploads ledger", "backend", "file", "path", cfg.UploadsLedgerPath)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.Connect(cfg.NATSURL, cfg.NATSSubject, logr)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	uploader, err := storage.NewUploader(storage.ConfigFrom(cfg))
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	cat := catalog.Load(cfg.CatalogPath, logr)
	replicateClient := replicate.NewClient(cfg, logr)

	userRepo := repository.NewUserRepository(db)
	generationRepo := repository.NewGenerationRepository(db)

	referralService := service.NewReferralService(logr, userRepo, cfg.ReferralBonus)
	userService := service.NewUserService(logr, userRepo, referralService, cfg.InitialCredits)
	conversionService := service.NewConversionService(cfg, logr, userRepo, generationRepo, replicateClient, publisher)
	selectionService := service.NewSelectionService(logr, userRepo, cat, uploads, conversionService)

	bot := telegram.NewBot(cfg, botAPI, logr, userService, selectionService, uploader)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, admin.Deps{
			Users:       userService,
			Generations: generationRepo,
			Uploads:     uploads,
			Catalog:     cat,
			Broadcaster: bot,
			DB:          db,
		})
		go func() {
			if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("admin server stopped", "err", err)
			}
		}()
	} else {
		logr.Warn("admin panel disabled: ADMIN_USERNAME and ADMIN_PASSWORD are not set")
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}
