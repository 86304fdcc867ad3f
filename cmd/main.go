package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/lightlink-network/ll-rollup-node/api"
	"github.com/lightlink-network/ll-rollup-node/chain"
	"github.com/lightlink-network/ll-rollup-node/database"
	"github.com/lightlink-network/ll-rollup-node/derive"
	"github.com/lightlink-network/ll-rollup-node/monitor"
	"github.com/lightlink-network/ll-rollup-node/withdrawals"
	"github.com/lmittmann/tint"
)

// Version will be set at build time
var Version = "development"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	// create a new logger
	Logger := slog.New(tint.NewHandler(os.Stderr, nil))

	// set global logger with custom options
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level: slog.LevelDebug,
		}),
	))

	Logger.Info("Starting ll-rollup-node ("+Version+")",
		"Go Version", runtime.Version(),
		"Operating System", runtime.GOOS,
		"Architecture", runtime.GOARCH)

	l1StartBlock := mustParseUint("L1_START_BLOCK")
	l2StartBlock := mustParseUint("L2_START_BLOCK")
	finalityDepth := mustParseUint("L1_FINALITY_DEPTH")
	deriveInterval := mustParseUint("DERIVE_INTERVAL")
	confirmTimeout := mustParseUint("DEPOSIT_CONFIRM_TIMEOUT")

	l1, err := chain.NewRPCProvider(chain.RPCProviderOpts{
		Endpoint: os.Getenv("L1_RPC_URL"),
		Logger:   Logger.With("component", "l1-provider"),
	})
	if err != nil {
		log.Fatalf("failed to create l1 provider: %v", err)
	}

	l2, err := chain.NewRPCProvider(chain.RPCProviderOpts{
		Endpoint: os.Getenv("L2_RPC_URL"),
		Logger:   Logger.With("component", "l2-provider"),
	})
	if err != nil {
		log.Fatalf("failed to create l2 provider: %v", err)
	}

	db, err := database.NewDatabase(database.DatabaseOpts{
		URI:          os.Getenv("DATABASE_URI"),
		DatabaseName: os.Getenv("DATABASE_NAME"),
		Logger:       Logger.With("component", "database"),
	})
	if err != nil {
		log.Fatalf("failed to create database: %v", err)
	}

	if err := db.CreateIndexes(context.Background()); err != nil {
		log.Fatalf("failed to create database indexes: %v", err)
	}

	deriver := derive.NewDeriver(derive.DeriverOpts{
		L1:            l1,
		PortalAddress: common.HexToAddress(os.Getenv("PORTAL_ADDRESS")),
		BatcherHash:   common.HexToHash(os.Getenv("BATCHER_HASH")),
		FeeOverhead:   common.HexToHash(os.Getenv("FEE_OVERHEAD")),
		FeeScalar:     common.HexToHash(os.Getenv("FEE_SCALAR")),
		StartL1Block:  l1StartBlock,
		StartL2Block:  l2StartBlock,
		Logger:        Logger.With("component", "deriver"),
	})

	pending := withdrawals.NewPendingSet()

	mon, err := monitor.NewMonitor(monitor.MonitorOpts{
		L1:                   l1,
		L2:                   l2,
		Store:                db,
		Pending:              pending,
		PortalAddress:        common.HexToAddress(os.Getenv("PORTAL_ADDRESS")),
		MessagePasserAddress: common.HexToAddress(os.Getenv("MESSAGE_PASSER_ADDRESS")),
		ConfirmTimeout:       time.Duration(confirmTimeout) * time.Second,
		L1StartBlock:         l1StartBlock,
		L2StartBlock:         l2StartBlock,
		Logger:               Logger.With("component", "bridge-monitor"),
	})
	if err != nil {
		log.Fatalf("failed to create bridge monitor: %v", err)
	}

	// start api server
	server, err := api.NewServer(api.ServerOpts{
		Logger:       Logger.With("component", "api-server"),
		URI:          os.Getenv("DATABASE_URI"),
		DatabaseName: os.Getenv("DATABASE_NAME"),
		Port:         os.Getenv("API_PORT"),
		Deriver:      deriver,
		Pending:      pending,
	})
	if err != nil {
		log.Fatalf("failed to create api server: %v", err)
	}

	go server.StartServer()

	// Create context that will be canceled on SIGINT or SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start monitor and derivation loop
	errChan := make(chan error, 2)
	go func() {
		errChan <- mon.Run(ctx)
	}()
	go func() {
		errChan <- runDeriver(ctx, Logger.With("component", "deriver-loop"), deriver, l1,
			time.Duration(deriveInterval)*time.Second, finalityDepth)
	}()

	// Wait for either error or signal
	select {
	case err := <-errChan:
		if err != nil {
			log.Printf("Node error: %v", err)
		}
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		fmt.Println("Shutting down gracefully...")
		cancel() // This will trigger shutdown via context

		if err := <-errChan; err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}
}

// runDeriver periodically derives L2 blocks up to the current L1 head and
// advances the safe head to the finality depth behind it. Derivation failures
// are logged and retried on the next tick, the watermark never moves past an
// unprocessed block.
func runDeriver(ctx context.Context, logger *slog.Logger, deriver *derive.Deriver, l1 chain.Provider, interval time.Duration, finalityDepth uint64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down derivation loop")
			return nil
		case <-ticker.C:
			latest, err := l1.LatestBlockNumber(ctx)
			if err != nil {
				logger.Warn("failed to get l1 head", "error", err)
				continue
			}

			blocks, err := deriver.Derive(ctx, latest)
			if err != nil {
				logger.Warn("derivation failed, will retry", "target", latest, "error", err)
				continue
			}

			if len(blocks) > 0 {
				logger.Info("derived l2 blocks", "count", len(blocks), "l1Head", latest)
			}

			if latest > finalityDepth {
				deriver.UpdateSafeHead(latest - finalityDepth)
			}
		}
	}
}

func mustParseUint(key string) uint64 {
	value, err := strconv.ParseUint(os.Getenv(key), 10, 64)
	if err != nil {
		log.Fatalf("failed to parse %s: %v", key, err)
	}
	return value
}
