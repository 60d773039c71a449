package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcapi "bizops-backend/internal/api/grpc"
	httpapi "bizops-backend/internal/api/http"
	"bizops-backend/internal/config"
	"bizops-backend/internal/events"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/security"
	"bizops-backend/internal/service"
	"bizops-backend/internal/storage"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting BizOps Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "http_address", cfg.GetServerAddress(), "grpc_address", cfg.GetGRPCAddress())
	logger.Info("Store configuration", "driver", cfg.Store.Driver, "events", cfg.Events.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Repositories
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	defer backend.Close()
	store := backend.Store

	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err)
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer publisher.Close()

	// Initialize Services
	authorizer := service.NewMemberAuthorizer(store.Members)
	approvalSvc := service.NewApprovalPolicyService(store, authorizer, publisher)
	ledgerSvc, err := service.NewCreditLedgerService(store, approvalSvc, publisher, cfg.Ledger)
	if err != nil {
		logger.Error("Failed to initialize ledger service", "error", err)
		log.Fatalf("Failed to initialize ledger service: %v", err)
	}
	membershipSvc := service.NewMembershipService(
		store,
		service.NewCodeGenerator(cfg.Membership.CodeLength),
		authorizer,
		service.NewMemberNotifier(cfg.SendGrid),
		publisher,
		cfg.Membership,
	)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// Set up HTTP API
	handler := httpapi.NewHandler(ledgerSvc, approvalSvc, membershipSvc)
	router := httpapi.NewRouter(handler, httpapi.NewAuthMiddleware(tokenManager, authorizer))
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up gRPC health server
	grpcServer := grpcapi.NewServer(tokenManager, backend.Ping)
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}
	go grpcServer.Watch(ctx, 15*time.Second)

	go func() {
		logger.Info("gRPC server listening", "address", cfg.GetGRPCAddress())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("Failed to serve gRPC", "error", err)
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	grpcServer.Shutdown()
	logger.Info("Servers stopped. Goodbye!")
}
