package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mintaro/internal/auth"
	"github.com/sudo-init-do/mintaro/internal/chain"
	"github.com/sudo-init-do/mintaro/internal/config"
	"github.com/sudo-init-do/mintaro/internal/db"
	"github.com/sudo-init-do/mintaro/internal/escrow"
	"github.com/sudo-init-do/mintaro/internal/journal"
	"github.com/sudo-init-do/mintaro/internal/messaging"
	"github.com/sudo-init-do/mintaro/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("MINTARO_CONFIG"), "path to a YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection when configured
	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		pool, err = db.Open(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			log.Fatalf("database error: %v", err)
		}
		defer pool.Close()
	} else {
		logger.Info("no database configured, event journal disabled")
	}

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("escrow backend error: %v", err)
	}

	recorder := metrics.New()
	hub := messaging.NewHub(logger)
	observers := []escrow.Observer{recorder, hub}
	if pool != nil {
		observers = append(observers, journal.New(pool, logger))
	}
	engine := escrow.NewEngine(backend, escrow.WithLogger(logger), escrow.WithObserver(observers...))
	hub.SetEngine(engine)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	e := newRouter(deps{
		engine:   engine,
		issuer:   issuer,
		login:    auth.NewHandler(auth.NewChallenges(5*time.Minute), issuer, cfg.Auth.Admins, logger),
		hub:      hub,
		recorder: recorder,
		logger:   logger,
		ready:    readiness(engine, pool),
	})

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	logger.Info("server started", "port", cfg.Server.Port, "backend", backend.Name())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (escrow.Backend, error) {
	if cfg.Escrow.Backend == config.BackendLocal {
		return escrow.NewLocalLedger(), nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Chain.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	chainCfg := chain.Config{
		Contract:     common.HexToAddress(cfg.Chain.Contract),
		Key:          key,
		PollInterval: cfg.Chain.PollInterval,
		Logger:       logger,
	}
	if cfg.Chain.ChainID != 0 {
		chainCfg.ChainID = big.NewInt(cfg.Chain.ChainID)
	}
	contract, err := chain.Dial(ctx, cfg.Chain.RPCURL, chainCfg)
	if err != nil {
		return nil, err
	}
	logger.Info("delegating escrow to contract",
		"contract", cfg.Chain.Contract,
		"sender", contract.Sender(),
	)
	return escrow.NewDelegated(contract), nil
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// readiness checks the database, when there is one, and that the backend
// answers reads.
func readiness(engine *escrow.Engine, pool *pgxpool.Pool) func(echo.Context) error {
	var database pinger
	if pool != nil {
		database = pool
	}
	return readyHandler(engine, database)
}

func readyHandler(engine *escrow.Engine, database pinger) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if database != nil {
			if err := database.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
			}
		}
		if _, err := engine.JobCount(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "escrow backend unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	}
}
