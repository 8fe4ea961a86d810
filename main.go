package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/shareledger/src/config"
	"github.com/username/shareledger/src/database"
	"github.com/username/shareledger/src/handlers"
	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/security"
	"github.com/username/shareledger/src/services"
	"golang.org/x/time/rate"
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
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
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
	logger.L.Info("Shareledger backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if config.Cfg.AdminPasswordHash == "" {
		logger.L.Error("ADMIN_PASSWORD_HASH must be configured.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	logger.L.Info("Report cache initialized.")

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	uploadService := services.NewUploadService(reportCache)
	performanceService := services.NewPerformanceService(reportCache)

	authHandler := handlers.NewAuthHandler(authService)
	uploadHandler := handlers.NewUploadHandler(uploadService)
	txHandler := handlers.NewTransactionHandler(uploadService)
	portfolioHandler := handlers.NewPortfolioHandler(uploadService)
	mappingHandler := handlers.NewMappingHandler(uploadService)
	performanceHandler := handlers.NewPerformanceHandler(performanceService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/auth/login", authHandler.LoginHandler)

	apiRouter.HandleFunc("POST /api/upload/transactions", authHandler.AuthMiddleware(uploadHandler.HandleTransactionUpload))
	apiRouter.HandleFunc("POST /api/upload/portfolio", authHandler.AuthMiddleware(uploadHandler.HandlePortfolioUpload))
	apiRouter.HandleFunc("POST /api/upload/mappings", authHandler.AuthMiddleware(uploadHandler.HandleMappingUpload))

	apiRouter.HandleFunc("GET /api/transactions", authHandler.AuthMiddleware(txHandler.HandleGetTransactions))
	apiRouter.HandleFunc("GET /api/portfolio", authHandler.AuthMiddleware(portfolioHandler.HandleGetHoldings))
	apiRouter.HandleFunc("GET /api/mappings", authHandler.AuthMiddleware(mappingHandler.HandleGetMappings))
	apiRouter.HandleFunc("GET /api/export/companies", authHandler.AuthMiddleware(portfolioHandler.HandleGetCompanies))
	apiRouter.HandleFunc("GET /api/export/share-names", authHandler.AuthMiddleware(mappingHandler.HandleGetShareNames))

	apiRouter.HandleFunc("GET /api/performance", authHandler.AuthMiddleware(performanceHandler.HandleGetPerformance))
	apiRouter.HandleFunc("POST /api/performance/recompute", authHandler.AuthMiddleware(performanceHandler.HandleRecompute))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Shareledger backend is running"})
		} else if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
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
