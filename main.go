package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/username/sellersync/backend/src/config"
	"github.com/username/sellersync/backend/src/database"
	"github.com/username/sellersync/backend/src/handlers"
	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/parsers"
	"github.com/username/sellersync/backend/src/processors"
	"github.com/username/sellersync/backend/src/security"
	"github.com/username/sellersync/backend/src/services"
	"github.com/username/sellersync/backend/src/spapi"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Sellersync backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if err := config.Cfg.ValidateMarketplaceCredentials(); err != nil {
		logger.L.Error("Marketplace configuration invalid", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing preview cache...")
	previewCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing marketplace client...")
	signer, err := spapi.NewSigner(config.Cfg.AWSAccessKey, config.Cfg.AWSSecretKey, config.Cfg.AWSRegion)
	if err != nil {
		logger.L.Error("Failed to build request signer", "error", err)
		os.Exit(1)
	}
	tokenProvider := spapi.NewTokenProvider(
		config.Cfg.LWAClientID, config.Cfg.LWAClientSecret,
		config.Cfg.LWARefreshToken, config.Cfg.LWATokenURL)
	client, err := spapi.NewClient(config.Cfg.APIEndpoint, tokenProvider, signer, config.Cfg.HTTPTimeout)
	if err != nil {
		logger.L.Error("Failed to build marketplace client", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()
	store := database.NewStore(database.DB)

	reportParser := parsers.NewReportParser()
	extractor := processors.NewEventExtractor()
	classifier := processors.NewClassifier()

	syncService := services.NewSyncService(
		client, store, reportParser, extractor, classifier,
		emailService, config.Cfg.FinancesPageTime,
	)
	previewService := services.NewPreviewService(client, reportParser, classifier, previewCache)

	syncHandler := handlers.NewSyncHandler(syncService)
	previewHandler := handlers.NewPreviewHandler(previewService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	applyAuth := func(handler http.HandlerFunc) http.Handler {
		return handlers.AuthMiddleware(authService, handler)
	}

	apiRouter.Handle("POST /api/sync/{kind}", applyAuth(syncHandler.HandleRunSync))
	apiRouter.Handle("GET /api/sync/runs", applyAuth(syncHandler.HandleListRuns))
	apiRouter.Handle("GET /api/sync/runs/{id}", applyAuth(syncHandler.HandleGetRun))
	apiRouter.Handle("GET /api/settlements/preview", applyAuth(previewHandler.HandleGetSettlementPreview))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "SELLERSYNC Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
