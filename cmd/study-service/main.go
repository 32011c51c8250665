package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/auditlog"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/auth"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/config"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/database"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/kafka"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/consent"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/pseudonym"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/redaction"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/study"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("study-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	pseudonymRepo := pseudonym.NewRepository(db)
	if err := pseudonymRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate pseudonym tables")
	}
	consentRepo := consent.NewRepository(db)
	if err := consentRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate consent tables")
	}
	auditRepo := auditlog.NewRepository(db)
	if err := auditRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate interaction log tables")
	}

	producer := kafka.NewProducer(cfg.StudyEventsTopic)
	defer producer.Close()

	matrix, err := consent.LoadMatrix(cfg.ConsentMatrixPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load consent matrix")
	}
	rules, err := redaction.LoadRules(cfg.RedactionRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to load redaction rules, using defaults")
		rules = redaction.DefaultRules()
	}
	scrubber, err := redaction.NewScrubber(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid redaction rules")
	}

	consentService := consent.NewService(consentRepo, database.GetRedis(), cfg.ConsentCacheTTL, producer, cfg.ConsentVersion)
	gate := consent.NewGate(consentService, matrix, cfg.ConsentGateEnabled)
	if !cfg.ConsentGateEnabled {
		logger.Log.Warn("consent gate is DISABLED, all operations will be admitted")
	}

	identityService := pseudonym.NewService(pseudonymRepo, producer, cfg.PseudonymSalt, cfg.PseudonymMaxAttempts)
	auditService := auditlog.NewService(auditRepo, scrubber, producer)
	modelClient := newHTTPModelClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModelName)
	studyService := study.NewService(gate, consentService, identityService, auditService, modelClient, cfg.RetainPseudonymousData)

	router := mux.NewRouter()
	router.Use(auth.Recovery, auth.Logging, auth.MaxBody(cfg.MaxRequestBody))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/study").Subrouter()
	study.NewHandler(studyService).Register(api)
	consent.NewHandler(consentService, gate).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Study service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start study service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down study service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("study service forced to shutdown")
	}
	logger.Log.Info("Study service stopped")
}
