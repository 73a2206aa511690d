package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/cart"
	"github.com/fjod/go_cart/seafood-cart/internal/config"
	"github.com/fjod/go_cart/seafood-cart/internal/coupon"
	"github.com/fjod/go_cart/seafood-cart/internal/httpapi"
	"github.com/fjod/go_cart/seafood-cart/internal/inventory"
	"github.com/fjod/go_cart/seafood-cart/internal/logger"
	"github.com/fjod/go_cart/seafood-cart/internal/orders"
	"github.com/fjod/go_cart/seafood-cart/internal/payment"
	"github.com/fjod/go_cart/seafood-cart/internal/poller"
	"github.com/fjod/go_cart/seafood-cart/internal/session"
	"github.com/fjod/go_cart/seafood-cart/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Sync() //nolint:errcheck
	zap.ReplaceGlobals(l)

	ctx := context.Background()
	var cleanup []func()
	runCleanup := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		cleanup = nil
	}
	defer runCleanup()

	// Cart storage
	store, closeStore, err := openStorage(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	cleanup = append(cleanup, closeStore)

	// Coupons
	var coupons coupon.Catalog = coupon.DefaultCatalog()
	if cfg.CouponDBPath != "" {
		catalog, err := coupon.NewSQLiteCatalog(cfg.CouponDBPath)
		if err != nil {
			l.Fatal("failed to open coupon database", zap.Error(err))
		}
		if err := catalog.RunMigrations(cfg.CouponMigrationsPath); err != nil {
			l.Fatal("failed to run coupon migrations", zap.Error(err))
		}
		cleanup = append(cleanup, func() { catalog.Close() })
		coupons = catalog
		l.Info("coupon catalog loaded from sqlite", zap.String("path", cfg.CouponDBPath))
	}

	stock := inventory.NewMemoryStore()
	cleanup = append(cleanup, func() { stock.Close() })

	// Order submission
	var submitter orders.Submitter
	var history httpapi.OrderLister
	switch cfg.Submitter {
	case config.SubmitterFull:
		creds := cfg.OrdersCredentials()
		repo, err := orders.NewPostgresRepository(creds, l)
		if err != nil {
			l.Fatal("failed to connect to orders database", zap.Error(err))
		}
		cleanup = append(cleanup, func() { repo.Close() })
		if err := repo.RunMigrations(creds); err != nil {
			l.Fatal("failed to run order migrations", zap.Error(err))
		}
		l.Info("order migrations completed")

		var publisher orders.Publisher
		if len(cfg.KafkaBrokers) > 0 {
			kp := orders.NewKafkaPublisher(cfg.OrderTopic, cfg.KafkaBrokers...)
			cleanup = append(cleanup, func() { kp.Close() })
			publisher = kp
		}

		svc := orders.NewService(stock, payment.NewSimulatedGateway(nil), repo, publisher, orders.DefaultBreakerSettings(), l)
		submitter = svc
		history = svc
	default:
		submitter = orders.NewSimulatedSubmitter(cfg.SimulatedDelay, cfg.SimulatedFailureRate)
	}
	l.Info("order submitter configured", zap.String("submitter", cfg.Submitter))

	sessions := session.NewManager(session.Config{
		Storage:   store,
		Submitter: submitter,
		Store: cart.Config{
			Stock:    stock,
			Coupons:  coupons,
			Policy:   cfg.DeliveryPolicy(),
			CartTTL:  cfg.CartTTL,
			ErrorTTL: cfg.ErrorTTL,
		},
		WatchInterval: cfg.ExpiryCheckInterval,
		IdleTTL:       cfg.SessionIdleTTL,
		Logger:        l,
	})
	cleanup = append(cleanup, sessions.Close)

	// Drop cached sessions when any instance places an order for them
	var wg sync.WaitGroup
	pollCtx, stopPolling := context.WithCancel(ctx)
	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(sessions, l, cfg.OrderTopic, instanceGroupID(), cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(pollCtx)
		}()
		cleanup = append(cleanup, p.Close)
	}

	// gRPC health
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
	if err != nil {
		l.Fatal("failed to listen", zap.String("port", cfg.GRPCHealthPort), zap.Error(err))
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	go func() {
		l.Info("grpc health server listening", zap.String("port", cfg.GRPCHealthPort))
		if err := grpcServer.Serve(lis); err != nil {
			l.Error("grpc server stopped", zap.Error(err))
		}
	}()

	// HTTP
	carts := httpapi.NewCartHandler(sessions, cfg.RequestTimeout, l)
	checkout := httpapi.NewCheckoutHandler(carts, history, cfg.RequestTimeout, l)
	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: httpapi.NewRouter(httpapi.RouterConfig{
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		}, carts, checkout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		l.Info("seafood cart starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown, also taken when the HTTP server fails so cleanup still runs
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	select {
	case sig := <-quit:
		l.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		l.Error("server error, shutting down", zap.Error(err))
		exitCode = 1
	}

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	stopPolling()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		l.Info("poller stopped cleanly")
	case <-shutdownCtx.Done():
		l.Warn("poller didn't stop in time")
	}

	l.Info("server exited")
	if exitCode != 0 {
		runCleanup()
		l.Sync() //nolint:errcheck
		os.Exit(exitCode)
	}
}

func openStorage(ctx context.Context, cfg *config.Config, l *zap.Logger) (storage.Storage, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		l.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisStorage(client, cfg.RedisTTL), func() { client.Close() }, nil

	case config.BackendMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		ms := storage.NewMongoStorage(db)
		if err := ms.CreateIndexes(ctx); err != nil {
			l.Warn("failed to create mongo indexes", zap.Error(err))
		}
		l.Info("connected to mongodb", zap.String("database", cfg.MongoDBName))
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(ctx); err != nil {
				l.Warn("mongo disconnect failed", zap.Error(err))
			}
		}
		return ms, closeFn, nil

	default:
		return storage.NewMemoryStorage(), func() {}, nil
	}
}

// instanceGroupID gives every instance its own consumer group so each one
// sees every order placed event.
func instanceGroupID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return poller.DefaultGroupID
	}
	return poller.DefaultGroupID + "-" + host
}
