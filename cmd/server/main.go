package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/voxkit/license-server/internal/api"
	"github.com/voxkit/license-server/internal/config"
	"github.com/voxkit/license-server/internal/database"
	"github.com/voxkit/license-server/internal/repository"
	"github.com/voxkit/license-server/internal/service"
	"github.com/voxkit/license-server/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.Debug)

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

	licenseRepo := repository.NewLicenseRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	locks := service.NewDeviceLocks()
	licenseService := service.NewLicenseService(cfg, logr, licenseRepo, usageRepo, notificationRepo, locks)
	couponService := service.NewCouponService(cfg, logr, couponRepo, licenseRepo, locks)
	notificationService := service.NewNotificationService(logr, notificationRepo)

	server := api.NewServer(cfg, logr, licenseService, couponService, notificationService)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
