package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nexus-rag/internal/config"
	"nexus-rag/internal/db"
	apihttp "nexus-rag/internal/http"
	"nexus-rag/internal/query"
	"nexus-rag/internal/repository"
	"nexus-rag/internal/service"
	"nexus-rag/internal/store"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL not configured")
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	// Backend de gobernanza: Redis compartido si está configurado y
	// responde; si no, fallback en proceso. El fallback solo es seguro
	// en despliegues de una única instancia.
	var ttlStore store.TTLStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, falling back to in-process store", zap.Error(err))
		} else {
			ttlStore = store.NewRedisStore(redisClient)
		}
		cancel()
	}
	if ttlStore == nil {
		logger.Warn("using in-process governance store; NOT safe for multi-instance deployments")
		ttlStore = store.NewMemoryStore()
	}

	limiter := service.NewRateLimiter(ttlStore, cfg.RateLimitMax, cfg.RateLimitWindow(), logger)
	presence := service.NewPresenceTracker(ttlStore, cfg.PresenceTTL(), logger)

	keyRepo := repository.NewPgAPIKeyRepository(pool)
	keySvc := service.NewAPIKeyService(keyRepo, logger)

	querySvc := query.NewHTTPClient(cfg.QueryServiceURL, "", logger)

	auth := apihttp.NewAuthMiddleware(logger, keySvc, cfg.JWTSecret, cfg.InternalSecret)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	if cfg.InternalSecret == "" {
		logger.Warn("internal secret not configured; header identity is spoofable")
	}

	govHandler := apihttp.NewGovernanceHandler(logger, limiter, presence, keySvc)
	queryHandler := apihttp.NewQueryHandler(logger, querySvc)
	rateLimitMW := apihttp.RateLimitMiddleware(limiter, logger)
	router := apihttp.NewRouter(logger, auth, rateLimitMW, govHandler, queryHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
