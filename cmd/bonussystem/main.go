// Package main запускает систему массового начисления бонусов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dvmnase/bonus-system/internal/config"
	"github.com/dvmnase/bonus-system/internal/handler"
	"github.com/dvmnase/bonus-system/internal/ingest"
	"github.com/dvmnase/bonus-system/internal/model"
	"github.com/dvmnase/bonus-system/internal/notify"
	"github.com/dvmnase/bonus-system/internal/oplog"
	"github.com/dvmnase/bonus-system/internal/repository"
	"github.com/dvmnase/bonus-system/internal/service"
)

const operationLogFile = "batch_log.txt"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	policy, err := cfg.Policy()
	if err != nil {
		sugar.Fatalw("bonus policy error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
	} else {
		repo, err = repository.NewFileRepository(cfg.StoragePath)
	}
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	opLog := oplog.New(filepath.Join(cfg.StoragePath, operationLogFile), logger)

	svc := service.NewService(repo, opLog)
	defer svc.Close()

	if err := svc.LoadHistory(context.Background()); err != nil {
		sugar.Fatalw("history load error", "error", err.Error())
	}

	if cfg.EventWebhookAddress != "" {
		svc.Subscribe(notify.NewWebhookObserver(cfg.EventWebhookAddress).Observer())
	}

	// Разовый режим: обработать файл покупок и завершиться.
	if cfg.PurchasesFile != "" {
		if err := runFileBatch(svc, cfg.PurchasesFile, policy, sugar); err != nil {
			sugar.Fatalw("batch processing error", "error", err.Error())
		}
		return
	}

	h := handler.NewHandler(svc, opLog, logger, policy)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting bonus system server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func runFileBatch(svc *service.Service, path string, policy model.Policy, sugar *zap.SugaredLogger) error {
	purchases, err := ingest.ReadPurchasesXML(path)
	if err != nil {
		return err
	}

	results := svc.ProcessBatch(context.Background(), purchases, policy)

	for _, tx := range results {
		sugar.Infow("purchase processed",
			"card", tx.CardNo,
			"status", tx.Status,
			"bonus", tx.BonusAmount.String(),
		)
	}

	sugar.Infow("batch finished", "purchases", len(results))
	return nil
}
