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
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/observability/metrics"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/pseudonym"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/redaction"
	"github.com/gorilla/mux"
)

// The privacy service is the staff-facing surface: re-identification,
// research export, statistics and erasure. Every route is JWT-guarded and
// the mutating ones additionally require researcher level or above.
func main() {
	logger.Init("privacy-service")
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		logger.Log.Fatal("JWT_SECRET is required for the privacy service")
	}
	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid JWT configuration")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	pseudonymRepo := pseudonym.NewRepository(db)
	if err := pseudonymRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate pseudonym tables")
	}
	auditRepo := auditlog.NewRepository(db)
	if err := auditRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate interaction log tables")
	}

	producer := kafka.NewProducer(cfg.StudyEventsTopic)
	defer producer.Close()

	rules, err := redaction.LoadRules(cfg.RedactionRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to load redaction rules, using defaults")
		rules = redaction.DefaultRules()
	}
	scrubber, err := redaction.NewScrubber(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid redaction rules")
	}

	identityService := pseudonym.NewService(pseudonymRepo, producer, cfg.PseudonymSalt, cfg.PseudonymMaxAttempts)
	auditService := auditlog.NewService(auditRepo, scrubber, producer)

	router := mux.NewRouter()
	router.Use(auth.Recovery, auth.Logging, auth.MaxBody(cfg.MaxRequestBody))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	if cfg.OIDCIssuer != "" {
		oidcConfig, err := auth.NewOIDCConfig(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			logger.Log.WithError(err).Warn("OIDC sign-in not configured")
		} else {
			router.HandleFunc("/auth/login", oidcConfig.LoginHandler()).Methods(http.MethodGet)
			logger.Log.WithField("issuer", oidcConfig.Issuer()).Info("OIDC sign-in enabled")
		}
	}

	api := router.PathPrefix("/api/v1/privacy").Subrouter()
	api.Use(auth.Authenticate(jwtManager), auth.RequireLevel(models.AccessLevelResearcher))
	pseudonym.NewHandler(identityService).Register(api)
	auditlog.NewHandler(auditService).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.PrivacyPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Privacy service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start privacy service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down privacy service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("privacy service forced to shutdown")
	}
	logger.Log.Info("Privacy service stopped")
}
