package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"valorant-stats/config"
	"valorant-stats/handlers"
	"valorant-stats/middleware"
	"valorant-stats/models"
	"valorant-stats/riot"
	"valorant-stats/services"
	"valorant-stats/store"
	"valorant-stats/utils"
	"valorant-stats/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}

	migrations := []interface{}{
		&models.Player{},
		&models.ValorantMatch{},
		&models.ModelRun{},
	}
	if cfg.CacheBackend == config.CacheBackendPostgres {
		migrations = append(migrations, &models.CachedMatch{})
	}
	if err := db.AutoMigrate(migrations...); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	matchCache, closeMatchCache, err := openMatchCache(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("failed to open match cache: ", err)
	}
	contentCache, closeContentCache := openContentCache(ctx, cfg, log)

	// One limiter for every caller of the Riot API
	limiter := rate.NewLimiter(rate.Every(cfg.RiotRequestInterval), cfg.RiotBurst)
	riotClient, err := riot.NewClient(cfg.RiotAPIKey,
		riot.WithBaseURL(cfg.RiotRegionURL),
		riot.WithLimiter(limiter),
		riot.WithLogger(log),
		riot.WithMaxRetries(cfg.RiotMaxRetries),
		riot.WithTimeline(cfg.RiotFetchTimeline),
	)
	if err != nil {
		log.Fatal("failed to create riot client: ", err)
	}

	fetcher := services.NewMatchCacheFetcher(riotClient, matchCache, log)
	fetcher.Count = cfg.MatchHistoryCount
	fetcher.DetailAttempts = cfg.RiotDetailAttempts
	fetcher.RetryBackoff = cfg.RiotRetryBackoff

	var uploader services.ArtifactUploader
	if cfg.R2Enabled() {
		r2, err := utils.NewR2Uploader(ctx, cfg.CloudflareAccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2BucketName, cfg.CDNBaseURL)
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
		uploader = r2
		log.Info("✅ Analysis images will be uploaded to R2")
	}

	runner := services.NewScriptRunner(cfg.PythonBin, cfg.ScriptsDir, cfg.ScriptTimeout, db, log)

	lolService := services.NewLolService(riotClient, matchCache, fetcher, db, log)
	modelService := services.NewModelService(runner, cfg.ScriptsDir, uploader, db, log)
	valorantService := services.NewValorantService(db, cfg.MocksDir, contentCache, cfg.ValorantContentURL, cfg.ContentCacheTTL, utils.HTTPClient, log)

	housekeeper := services.NewHousekeeper(db, filepath.Join(cfg.ScriptsDir, "artifacts"), cfg.ArtifactMaxAge, cfg.ModelRunRetention, log)
	sched, err := housekeeper.Start()
	if err != nil {
		log.Fatal("failed to start scheduler: ", err)
	}

	refresher := workers.NewHistoryRefresher(fetcher, cfg.TrackedPUUIDs, log)
	go refresher.Poll(ctx, cfg.RefreshInterval)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // batches of raw matches with timelines
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,OPTIONS,HEAD",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400,
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.RequestContextMiddleware(ctx, cfg.RequestTimeout))
	app.Use(middleware.RequestLogMiddleware(log))

	serviceAuth := middleware.ServiceTokenMiddleware(cfg.ServiceToken, log)

	handlers.SetupSystemRoutes(app, matchCache, db)
	handlers.SetupLolRoutes(app, lolService, serviceAuth)
	handlers.SetupModelRoutes(app, modelService)
	handlers.SetupValorantRoutes(app, valorantService, serviceAuth)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("Server error: %v", err)
			stop()
		}
	}()

	log.Infof("✅ Server running on http://localhost:%s", cfg.Port)
	log.Infof("✅ Match cache backend: %s", cfg.CacheBackend)
	log.Infof("✅ Riot requests paced at one per %s (burst %d)", cfg.RiotRequestInterval, cfg.RiotBurst)
	log.Infof("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Errorf("scheduler shutdown: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	closeMatchCache(shutdownCtx)
	closeContentCache()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Bye.")
}

// openMatchCache builds the configured match cache and a func that releases it.
func openMatchCache(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logrus.Logger) (store.MatchCache, func(context.Context), error) {
	noop := func(context.Context) {}

	switch cfg.CacheBackend {
	case config.CacheBackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			return nil, nil, fmt.Errorf("ping mongo: %w", err)
		}

		cache := store.NewMongoMatchCache(client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection))
		if err := cache.EnsureIndexes(connectCtx); err != nil {
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		log.Infof("✅ Connected to MongoDB %s.%s", cfg.MongoDatabase, cfg.MongoCollection)

		return cache, func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				log.Errorf("mongo disconnect: %v", err)
			}
		}, nil

	case config.CacheBackendMemory:
		log.Warn("⚠️  Using in-memory match cache, matches are lost on restart")
		return store.NewMemoryMatchCache(), noop, nil

	default:
		return store.NewGormMatchCache(db), noop, nil
	}
}

// openContentCache uses Redis when REDIS_URL is set and reachable, memory otherwise.
func openContentCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.ContentCache, func()) {
	if cfg.RedisURL == "" {
		return store.NewMemoryContentCache(), func() {}
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warnf("⚠️  Invalid REDIS_URL, using in-memory content cache: %v", err)
		return store.NewMemoryContentCache(), func() {}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnf("⚠️  Redis unreachable, using in-memory content cache: %v", err)
		_ = client.Close()
		return store.NewMemoryContentCache(), func() {}
	}

	log.Info("✅ Connected to Redis for content caching")
	return store.NewRedisContentCache(client, "valorant-stats:"), func() {
		if err := client.Close(); err != nil {
			log.Errorf("redis close: %v", err)
		}
	}
}
