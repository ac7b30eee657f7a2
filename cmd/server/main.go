package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"arbscan/internal/api"
	"arbscan/internal/api/handlers"
	"arbscan/internal/catalog"
	"arbscan/internal/config"
	"arbscan/internal/engine"
	"arbscan/internal/exchange"
	"arbscan/internal/repository"
	"arbscan/internal/websocket"
	"arbscan/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := utils.InitLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// База данных опциональна: без неё сканер работает,
	// но возможности не сохраняются между перезапусками
	var repo engine.Repository
	var oppStore handlers.OpportunityStore
	var credsStore handlers.CredentialsStore
	var credsRepo *repository.CredentialsRepository
	db, err := initDatabase(cfg)
	if err != nil {
		log.Warn("database unavailable, opportunities will not be persisted",
			utils.String("dsn", cfg.Database.DSNWithoutPassword()), utils.Err(err))
	} else {
		defer db.Close()
		oppRepo := repository.NewOpportunityRepository(db)
		repo = oppRepo
		oppStore = oppRepo
		credsRepo = repository.NewCredentialsRepository(db)
		credsStore = credsRepo
		log.Info("connected to database",
			utils.String("dsn", cfg.Database.DSNWithoutPassword()))
	}

	encKey, err := cfg.EncryptionKeyBytes()
	if err != nil {
		panic(fmt.Sprintf("invalid ENCRYPTION_KEY: %v", err))
	}

	registry := exchange.NewRegistry(log)
	defer exchange.CloseGlobalClient()

	// Движок создает клиентов через source: с сохраненными ключами,
	// если они есть, иначе публичными
	var source catalog.ClientSource = registry
	if credsRepo != nil && len(encKey) > 0 {
		source = exchange.NewCredentialedSource(registry, credsRepo, encKey, log)
	}

	store := catalog.NewStore(cfg.Collections.Dir)
	builder := catalog.NewBuilder(registry, store, log)

	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	eng := engine.New(cfg, source, builder, repo, hub, log)
	go func() {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scan engine stopped", utils.Err(err))
		}
	}()

	router := api.SetupRoutes(&api.Dependencies{
		Opportunities: oppStore,
		Collections:   builder,
		Engine:        eng,
		Registry:      registry,
		Credentials:   credsStore,
		EncryptionKey: encKey,
		Venues:        cfg.Scan.Venues,
		TokenHash:     cfg.Security.APITokenHash,
		Hub:           hub,
		Log:           log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", utils.String("addr", server.Addr))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", utils.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", utils.Err(err))
	}

	log.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
