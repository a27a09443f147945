package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"fixmycity-be/config"
	"fixmycity-be/controllers"
	"fixmycity-be/metrics"
	"fixmycity-be/middlewares"
	"fixmycity-be/notifications"
	"fixmycity-be/repositories"
	"fixmycity-be/routes"
	"fixmycity-be/services"
	"fixmycity-be/storage"
	"fixmycity-be/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := utils.NewLogger("fixmycity", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Entry) error {
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.WithField("driver", cfg.StorageDriver).Info("Issue store ready")

	var redisClient *redis.Client
	if cfg.RedisAddress != "" {
		redisClient, err = config.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis")
	}

	images, closeImages, err := openImageStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeImages()

	var transport notifications.Transport
	switch cfg.NotifyTransport {
	case config.TransportRedis:
		transport = notifications.NewRedisQueueTransport(redisClient, cfg.NotifyQueue)
	case config.TransportNone:
		transport = notifications.NopTransport{}
	default:
		transport = notifications.NewLogTransport(logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	svc := services.NewIssueService(repo, images, notifications.NewHook(transport), logger, m)
	ic := controllers.NewIssueController(svc, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), middlewares.RequestLogger(logger), middlewares.Metrics(m), middlewares.CORS(cfg.CORSAllowedOrigins))

	var submitGuards []gin.HandlerFunc
	if redisClient != nil {
		submitGuards = append(submitGuards, middlewares.IssueRateLimiter(redisClient, cfg.IssueLimitPrefix, cfg.IssueLimit, cfg.IssueLimitWindow, logger))
	}
	routes.IssueRoutes(r, ic, submitGuards...)
	routes.MetricsRoutes(r, reg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, cfg *config.Config) (repositories.IssueRepository, error) {
	if cfg.StorageDriver == config.DriverMongo {
		client, err := config.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		repo, err := repositories.NewMongoIssueRepository(ctx, client, cfg.MongoDatabase, nil)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return repo, nil
	}
	repo, err := repositories.OpenSQLite(cfg.DatabasePath, nil)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, func(), error) {
	namer := storage.Namer{Unique: cfg.ImageUniqueNames}

	if cfg.ImageBackend == config.ImageBackendGCS {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewGCSImageStore(client, cfg.GCSBucket, namer), func() { client.Close() }, nil
	}
	return storage.NewLocalImageStore(cfg.ImageDir, namer), func() {}, nil
}
