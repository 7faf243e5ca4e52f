// Package main - Facebook action host entry point
// Wires config, storage, repositories, services and HTTP adapters
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/disk"

	"facebook-action/internal/adapters/gateway"
	"facebook-action/internal/adapters/handler"
	"facebook-action/internal/adapters/repository"
	"facebook-action/internal/adapters/storage"
	"facebook-action/internal/adapters/websocket"
	"facebook-action/internal/config"
	"facebook-action/internal/core/domain"
	"facebook-action/internal/core/ports"
	"facebook-action/internal/core/services"
)

// Downloaded media kept in redis expires after a week
const redisFileTTL = 7 * 24 * time.Hour

// mediaStore is what the gateway writes to and the file handler reads from
type mediaStore interface {
	ports.FileStorage
	ports.FileReader
}

func main() {
	if err := run(); err != nil {
		slog.Error("❌ Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("=== Facebook Action - Host Initialization ===")

	// 1. Load Configuration from Environment
	fmt.Println("[1/6] Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.LogLevel})))
	slog.Info("✓ Config loaded",
		"port", cfg.App.Port,
		"public_base_url", cfg.App.PublicBaseURL,
		"storage", cfg.Storage.Backend,
		"db_enabled", cfg.DB.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage for downloaded media
	fmt.Println("[2/6] Opening media storage...")
	store, closeStore, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Action configs and audit log
	fmt.Println("[3/6] Initializing repositories...")
	seed, err := config.LoadActions(cfg.ActionsFile)
	if err != nil {
		return fmt.Errorf("load actions: %w", err)
	}

	var (
		configs     ports.ActionConfigRepository
		webhookRepo ports.WebhookRepository
		mariadbRepo *repository.MariaDBRepository
	)
	if cfg.DB.Enabled() {
		db, err := connectMariaDB(cfg.DB, 5, 2*time.Second)
		if err != nil {
			return err
		}
		defer db.Close()

		mariadbRepo = repository.NewMariaDBRepository(db)
		// Seed only missing actions so panel edits survive restarts
		for i := range seed {
			_, err := mariadbRepo.GetActionConfig(ctx, seed[i].AgentID, seed[i].ActionID)
			if err == nil {
				continue
			}
			if !errors.Is(err, ports.ErrNotFound) {
				return fmt.Errorf("load action %s/%s: %w", seed[i].AgentID, seed[i].ActionID, err)
			}
			if err := mariadbRepo.SaveActionConfig(ctx, &seed[i]); err != nil {
				return fmt.Errorf("seed action %s/%s: %w", seed[i].AgentID, seed[i].ActionID, err)
			}
		}
		configs = mariadbRepo
		webhookRepo = mariadbRepo
		slog.Info("✓ MariaDB repository ready", "seeded_actions", len(seed))
	} else {
		configs = repository.NewMemoryRepository(seed)
		slog.Warn("DB_PASS not set, using in-memory action configs without audit log", "actions", len(seed))
	}

	// 4. Core services
	fmt.Println("[4/6] Initializing services...")
	hub := websocket.NewEventHub(cfg.App.EventsSecret)
	go hub.Run(ctx)

	intake := services.NewIntake()
	provider := func(c domain.ClientConfig) services.FacebookAPI {
		return gateway.NewFacebookClient(c, gateway.WithStorage(store))
	}
	dispatcher := services.NewDispatcher(configs, webhookRepo, hub, services.LoggingHandler{}, provider, intake)

	bridge := services.NewActionBridge()
	actions := &services.FacebookActions{Dispatcher: dispatcher, PublicBaseURL: cfg.App.PublicBaseURL}
	actions.Register(bridge)

	if mariadbRepo != nil {
		watchdog := &services.Watchdog{
			Purger:    mariadbRepo,
			DiskUsage: diskUsage("/"),
			Interval:  time.Duration(cfg.Watchdog.IntervalMinutes) * time.Minute,
			Retention: time.Duration(cfg.Watchdog.RetentionDays) * 24 * time.Hour,
			Threshold: cfg.Watchdog.DiskThreshold,
		}
		go watchdog.Run(ctx)
	}

	// 5. HTTP handlers
	fmt.Println("[5/6] Initializing HTTP handlers...")
	router := handler.NewRouter(handler.Routes{
		Webhook: handler.NewWebhookHandler(dispatcher),
		Panel:   handler.NewPanelHandler(configs, bridge, actions.WebhookURL),
		Actions: handler.NewActionHandler(bridge),
		System:  handler.NewSystemHandler(intake, hub.ClientCount, cfg.Watchdog.DiskThreshold, "/"),
		Files:   handler.NewFileHandler(store),
		Events:  hub.ServeWS,
	})

	// 6. Serve until interrupted
	fmt.Println("[6/6] Starting HTTP server...")
	return serve(ctx, cfg.App.Port, router)
}

// openStorage selects the media backend; the returned func releases it
func openStorage(cfg *config.Config) (mediaStore, func(), error) {
	baseURL := cfg.App.PublicBaseURL + "/files"

	switch cfg.Storage.Backend {
	case "redis":
		rdb, err := connectRedis(cfg.Redis, 5, 2*time.Second)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("✓ Redis media storage ready", "addr", cfg.Redis.Addr)
		return storage.NewRedisStore(rdb, baseURL, redisFileTTL), func() { rdb.Close() }, nil
	default:
		store, err := storage.NewBoltStore(cfg.Storage.Path, baseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open media storage: %w", err)
		}
		slog.Info("✓ Bolt media storage ready", "path", cfg.Storage.Path)
		return store, func() { store.Close() }, nil
	}
}

// connectMariaDB attempts to connect to MariaDB with retry logic
// Retries are necessary because Docker containers may still be initializing
func connectMariaDB(cfg config.DBConfig, maxRetries int, retryDelay time.Duration) (*sql.DB, error) {
	dsn := cfg.GetDSN()

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			slog.Warn("Failed to configure DB driver", "attempt", i, "max_retries", maxRetries, "error", err)
			time.Sleep(retryDelay)
			continue
		}

		err = db.Ping()
		if err == nil {
			return db, nil
		}

		slog.Warn("Cannot ping MariaDB", "attempt", i, "max_retries", maxRetries, "error", err)
		db.Close()

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("cannot connect to MariaDB after %d attempts: %w", maxRetries, err)
}

// connectRedis attempts to connect to Redis with retry logic
func connectRedis(cfg config.RedisConfig, maxRetries int, retryDelay time.Duration) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})

	ctx := context.Background()
	var err error

	for i := 1; i <= maxRetries; i++ {
		err = rdb.Ping(ctx).Err()
		if err == nil {
			return rdb, nil
		}

		slog.Warn("Cannot ping Redis", "attempt", i, "max_retries", maxRetries, "error", err)

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	rdb.Close()
	return nil, fmt.Errorf("cannot connect to Redis after %d attempts: %w", maxRetries, err)
}

func diskUsage(path string) services.DiskUsageFunc {
	return func(ctx context.Context) (float64, error) {
		stat, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return 0, err
		}
		return stat.UsedPercent, nil
	}
}

// serve runs the HTTP server and shuts it down gracefully when ctx ends
func serve(ctx context.Context, port int, router http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("✅ HTTP server listening",
			"addr", srv.Addr,
			"webhook", fmt.Sprintf("http://localhost:%d/webhook/facebook/{agentID}", port),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
