package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"campus-locator/bot"
	"campus-locator/config"
	"campus-locator/internal/handlers"
	"campus-locator/internal/jobs"
	"campus-locator/internal/repository"
	"campus-locator/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Config loaded successfully")

	// Create application context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	store, identity, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	app := initApplication(cfg, store, identity)
	defer app.sessions.CloseAll()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := app.accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
			log.Printf("Warning: failed to seed administrator: %v", err)
		}
	}

	if _, err := jobs.StartRepairJob(ctx, cfg.RepairSchedule, app.repairs); err != nil {
		log.Fatalf("Failed to start repair job: %v", err)
	}

	// Initialize Telegram Bot
	if err := initBot(ctx, cfg, app); err != nil {
		log.Printf("Warning: Failed to init Telegram Bot: %v", err)
	}

	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     app.server.Router(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s (store: %s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped gracefully")
}

type application struct {
	accounts *services.AccountService
	locator  *services.Locator
	sessions *services.CheckInSessions
	repairs  *services.RepairService
	notifier *bot.Notifier
	server   *handlers.Server
}

// initStore opens the document store selected by STORE_DRIVER. PocketBase brings its own
// identity provider; the other drivers keep bcrypt credentials in the store itself.
func initStore(ctx context.Context, cfg *config.Config) (repository.DocumentStore, repository.IdentityProvider, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, err
		}
		store := repository.NewRedisStore(client, "campus")
		return store, repository.NewStoreIdentity(store), func() { client.Close() }, nil

	case config.DriverPostgres:
		pool, err := repository.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		store := repository.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return store, repository.NewStoreIdentity(store), pool.Close, nil

	case config.DriverMemory:
		log.Println("Warning: memory store selected, data is lost on restart")
		store := repository.NewMemoryStore()
		return store, repository.NewStoreIdentity(store), func() {}, nil

	default:
		store := repository.NewPocketBaseStore(cfg.PocketBaseURL, cfg.PocketBaseToken)
		return store, repository.NewPocketBaseIdentity(store, cfg.PocketBaseAuthCollection), func() {}, nil
	}
}

// initApplication initializes all application dependencies
func initApplication(cfg *config.Config, store repository.DocumentStore, identity repository.IdentityProvider) *application {
	accountRepo := repository.NewAccountRepository(store)
	presenceRepo := repository.NewPresenceRepository(store)
	historyRepo := repository.NewScanHistoryRepository(store)

	recorder := services.NewCheckInRecorder(presenceRepo, historyRepo, cfg.PresenceScanLimit)
	repairs := services.NewRepairService(recorder, presenceRepo, services.DefaultRepairAttempts)
	sessions := services.NewCheckInSessions(recorder,
		services.WithCooldown(cfg.CooldownSeconds),
		services.WithRepairQueue(repairs),
	)

	// The bot is attached later; until then notifications are dropped
	notifier := bot.NewNotifier(nil)

	accounts := services.NewAccountService(identity, accountRepo, presenceRepo, notifier, sessions)
	accounts.SetActiveWindow(cfg.ActiveWindow)
	gate := services.NewApprovalGate(accountRepo)
	locator := services.NewLocator(accountRepo, presenceRepo, cfg.PresenceScanLimit)

	server := handlers.NewServer(handlers.Config{
		JWTSecret: cfg.JWTSecret,
		JWTIssuer: cfg.JWTIssuer,
		TokenTTL:  cfg.TokenTTL,
	}, accounts, gate, sessions, locator)

	return &application{
		accounts: accounts,
		locator:  locator,
		sessions: sessions,
		repairs:  repairs,
		notifier: notifier,
		server:   server,
	}
}

// initBot initializes the Telegram bot
func initBot(ctx context.Context, cfg *config.Config, app *application) error {
	if cfg.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN not set")
	}
	b, err := bot.Init(cfg.TelegramBotToken, cfg.AuthorizedChatID, app.accounts, app.locator)
	if err != nil {
		return err
	}
	app.notifier.Attach(b)
	b.StartPolling(ctx)

	log.Println("Telegram Bot Initialized")
	return nil
}
