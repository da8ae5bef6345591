// cmd/registryd/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/zap"

	"voting_registry/pkg/announce"
	"voting_registry/pkg/config"
	"voting_registry/pkg/database"
	"voting_registry/pkg/keeper"
	"voting_registry/pkg/registry"
	"voting_registry/pkg/security"
	"voting_registry/pkg/service"
	"voting_registry/pkg/utils"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	dataDir    = flag.String("data-dir", "./data", "Data directory path")
	debug      = flag.Bool("debug", false, "Enable debug mode")
)

// App represents the registry daemon
type App struct {
	db     *database.Service
	svc    *service.VotingService
	keeper *keeper.Keeper
	host   host.Host
	logger *zap.Logger
	cancel context.CancelFunc
}

func main() {
	flag.Parse()

	logger, err := initLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration",
			zap.String("path", *configFile),
			zap.Error(err),
		)
	}

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	app.cancel = cancel

	setupGracefulShutdown(ctx, cancel, app, logger)

	<-ctx.Done()
}

func initializeApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dbService, err := database.NewService(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing database service: %w", err)
	}
	if err := dbService.Start(initCtx); err != nil {
		return nil, fmt.Errorf("starting database: %w", err)
	}

	app := &App{
		db:     dbService,
		logger: logger,
	}

	var registryOpts []registry.Option
	if cfg.Announce.Enabled {
		h, topic, err := joinAnnounceTopic(ctx, cfg, logger)
		if err != nil {
			app.stop(context.Background())
			return nil, err
		}
		app.host = h
		announcer := announce.NewAnnouncer(topic, h.ID(), logger)
		registryOpts = append(registryOpts, registry.WithObserver(announcer))
	}

	reg := registry.NewRegistry(logger, registryOpts...)

	var serviceOpts []service.Option
	if cfg.Security.RequireSignedBallots {
		crypto, err := initCrypto(cfg, logger)
		if err != nil {
			app.stop(context.Background())
			return nil, err
		}
		serviceOpts = append(serviceOpts, service.WithBallotVerification(crypto))
	}

	app.svc = service.NewVotingService(reg, dbService.GetRepository(), logger, serviceOpts...)

	if cfg.Keeper.Enabled {
		app.keeper = keeper.NewKeeper(app.svc, cfg.Keeper.Schedule, logger)
		if err := app.keeper.Start(); err != nil {
			app.stop(context.Background())
			return nil, fmt.Errorf("starting keeper: %w", err)
		}
	}

	logger.Info("All services started successfully",
		zap.Bool("announce", cfg.Announce.Enabled),
		zap.Bool("keeper", cfg.Keeper.Enabled),
		zap.Bool("signedBallots", cfg.Security.RequireSignedBallots),
	)
	return app, nil
}

func joinAnnounceTopic(ctx context.Context, cfg *config.Config, logger *zap.Logger) (host.Host, *pubsub.Topic, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.Announce.ListenAddr))
	if err != nil {
		return nil, nil, fmt.Errorf("creating libp2p host: %w", err)
	}

	topic, err := announce.JoinTopic(ctx, h, cfg.Announce.Topic)
	if err != nil {
		h.Close()
		return nil, nil, fmt.Errorf("joining announce topic: %w", err)
	}

	logger.Info("Joined announce topic",
		zap.String("topic", cfg.Announce.Topic),
		zap.String("peerID", h.ID().String()),
	)
	return h, topic, nil
}

func initCrypto(cfg *config.Config, logger *zap.Logger) (*security.CryptoManager, error) {
	passphrase := []byte(os.Getenv("VOTING_KEY_PASSPHRASE"))
	jwtSecret := []byte(os.Getenv("VOTING_JWT_SECRET"))

	keyPair, err := security.LoadKeyPair(cfg.Security.KeyFile, passphrase)
	if errors.Is(err, os.ErrNotExist) {
		keyPair, err = security.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("generating key pair: %w", err)
		}
		if err := security.SaveKeyPair(cfg.Security.KeyFile, keyPair, passphrase); err != nil {
			return nil, fmt.Errorf("saving key pair: %w", err)
		}
		logger.Info("Generated new key pair", zap.String("keyFile", cfg.Security.KeyFile))
	} else if err != nil {
		return nil, fmt.Errorf("loading key pair: %w", err)
	}

	return security.NewCryptoManager(keyPair, jwtSecret)
}

func (a *App) stop(ctx context.Context) error {
	var errs []error

	if a.keeper != nil {
		a.keeper.Stop()
	}

	if a.host != nil {
		if err := a.host.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing libp2p host: %w", err))
		}
	}

	if err := a.db.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping database: %w", err))
	}

	for _, err := range errs {
		a.logger.Error("Shutdown error", zap.Error(err))
	}

	a.logger.Info("All services stopped")
	return nil
}

func setupGracefulShutdown(ctx context.Context, cancel context.CancelFunc, app *App, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		case <-ctx.Done():
			logger.Info("Context cancelled")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := app.stop(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
			os.Exit(1)
		}

		cancel()
	}()
}

func initLogger(debug bool) (*zap.Logger, error) {
	logCfg := utils.DefaultLogConfig()
	if debug {
		logCfg.Level = "debug"
		logCfg.Debug = true
	}
	return utils.NewLogger(logCfg)
}
