package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/obdex/obdex/params"
	"github.com/obdex/obdex/pkg/api"
	"github.com/obdex/obdex/pkg/exchange/engine"
	"github.com/obdex/obdex/pkg/exchange/ledger"
	"github.com/obdex/obdex/pkg/exchange/token"
	"github.com/obdex/obdex/pkg/storage"
	"github.com/obdex/obdex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	if !common.IsHexAddress(cfg.Node.AdminAddress) {
		sugar.Fatalw("invalid_admin_address", "addr", cfg.Node.AdminAddress)
	}
	admin := common.HexToAddress(cfg.Node.AdminAddress)

	// ---- Storage ----
	store, err := storage.NewPebbleStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_init_failed", "err", err)
	}
	defer store.Close()

	// ---- Exchange ----
	// The on-chain bridge is out of scope for this node; deposits and
	// withdrawals go through the auto-approving gateway.
	led := ledger.New(ledger.AutoApproveGateway{}, store, sugar)
	registry := token.NewRegistry()
	eng := engine.New(admin, registry, led, util.RealClock{}, store, sugar)

	sugar.Infow("node_starting", "admin", admin.Hex(), "db_path", cfg.Node.DBPath)

	// ---- API Server ----
	apiServer := api.NewServer(eng, store, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- apiServer.Start(cfg.API.Addr, cfg.API.CORSOrigins)
	}()

	select {
	case <-ctx.Done():
		sugar.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("api_shutdown_failed", "err", err)
		}
	case err := <-errc:
		if err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}
}
