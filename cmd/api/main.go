// MB Way Payments Service
//
// This is the main entry point for the MB Way payment processing service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ticketpt/mbway-payments/config"
	"github.com/ticketpt/mbway-payments/internal/api"
	"github.com/ticketpt/mbway-payments/internal/domain"
	"github.com/ticketpt/mbway-payments/internal/gateway/ifthenpay"
	"github.com/ticketpt/mbway-payments/internal/gateway/sibs"
	"github.com/ticketpt/mbway-payments/internal/infrastructure/database"
	"github.com/ticketpt/mbway-payments/internal/payment"
	"github.com/ticketpt/mbway-payments/internal/platform/ticketing"
	"github.com/ticketpt/mbway-payments/internal/repository"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("core_url", cfg.Core.BaseURL))

	db, err := database.InitMySQL(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	// Wire up dependencies (manual dependency injection)
	transactionRepo := repository.NewTransactionRepository(db)
	coreClient := ticketing.NewClient(cfg.Core.BaseURL, cfg.Core.APIKey)
	gateways := map[string]domain.PaymentGateway{
		domain.GatewayIfThenPay: ifthenpay.NewClient(
			cfg.Gateways.IfThenPayEntrypoint, cfg.Gateways.Timeout(), logger),
		domain.GatewaySIBS: sibs.NewClient(
			cfg.Gateways.SIBSEntrypoint, cfg.Gateways.Timeout(), logger),
	}

	paymentService := payment.NewService(transactionRepo, coreClient, gateways, logger)

	handler := api.NewHandler(paymentService, logger)
	router := api.SetupRouter(handler, cfg.Server.GinMode)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
}
