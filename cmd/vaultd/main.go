package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/config"
	"github.com/elys-network/yield-vault/internal/keeper"
	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/simulations"
	"github.com/elys-network/yield-vault/internal/state"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/web"
)

const (
	vaultConfigName    = "default_vault"
	vaultConfigVersion = 1
)

// vaultStore is what the daemon needs from either store implementation.
type vaultStore interface {
	chain.EventSink
	keeper.Store
	web.Store
	SaveVaultParameters(ctx context.Context, params types.VaultParameters, configName string, version int, makeActive bool) (int64, error)
	LoadActiveVaultParameters(ctx context.Context, configName string) (types.VaultParameters, int, error)
}

func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if path := os.Getenv("LOG_FILE"); path != "" {
		if err := logger.InitializeWithFile(os.Getenv("LOG_LEVEL"), path); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to open log file")
		}
	} else {
		logger.Initialize(os.Getenv("LOG_LEVEL"))
	}
	log.Info().Msg("Yield vault starting...")

	if config.Mode != config.ModeSimulation {
		log.Fatal().Str("mode", config.Mode).Msg("VAULT_MODE must be 'simulation'. Halting to prevent running against unknown venues.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 2. Persistence ---
	var (
		store vaultStore
		db    *sql.DB
	)
	if config.PersistenceEnabled() {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(ctx, state.DB); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		pg, err := state.NewPostgresStore(state.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create store")
		}
		store, db = pg, state.DB
	} else {
		log.Warn().Msg("DB_HOST not set. History is kept in memory and lost on restart.")
		store = state.NewMemoryStore()
	}

	// --- 3. Vault Parameters ---
	base, _, err := store.LoadActiveVaultParameters(ctx, vaultConfigName)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			log.Fatal().Err(err).Msg("Failed to load active vault parameters")
		}
		log.Warn().Msg("No active vault parameters found, using defaults and saving.")
		base = config.DefaultVaultParameters
		if _, err := store.SaveVaultParameters(ctx, base, vaultConfigName, vaultConfigVersion, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default vault parameters.")
		}
	}
	params, err := config.VaultParameters(base)
	if err != nil {
		log.Fatal().Err(err).Msg("Vault parameters are invalid after applying environment overrides")
	}
	log.Info().
		Uint64("performance_fee_bps", params.PerformanceFeeBps).
		Uint64("compound_fee_bps", params.CompoundFeeBps).
		Stringer("risk_profile", params.RiskProfile).
		Msg("Vault parameters loaded successfully.")

	// --- 4. Deployment ---
	market := config.DefaultMarketParameters
	d, err := simulations.Deploy(simulations.DeploymentConfig{
		AssetDenom:   config.AssetDenom,
		Owner:        config.Owner,
		FeeRecipient: config.FeeRecipient,
		Params:       params,
		Market:       market,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to deploy simulated vault")
	}
	d.Chain.AddSink(store)

	if config.SeedDeposit != nil {
		if err := seed(ctx, d, config.Owner, *config.SeedDeposit); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed the vault")
		}
		log.Info().Str("amount", config.SeedDeposit.String()).Msg("Seed deposit made")
	}

	k, err := keeper.New(keeper.Config{
		Chain:       d.Chain,
		Ledger:      d.Ledger,
		Store:       store,
		Sender:      config.Keeper,
		BlockTime:   market.BlockTime,
		BeforeCycle: d.Accrue,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}

	// --- 5. Web Server ---
	webServer, err := web.NewWebServer(web.Config{
		Port:      config.WebPort,
		Chain:     d.Chain,
		Ledger:    d.Ledger,
		Bank:      d.Bank,
		Snapshots: k,
		Store:     store,
		DB:        db,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting vault API")
		if err := webServer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Web server stopped with error")
		}
	}()

	// --- 6. Keeper Schedule ---
	scheduler := keeper.NewScheduler(ctx)
	if err := scheduler.AddJob(config.KeeperSchedule, k); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule keeper")
	}
	if err := scheduler.RunNow(k); err != nil {
		log.Error().Err(err).Msg("Initial keeper cycle failed")
	}
	scheduler.Start()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")
	scheduler.Stop()
	log.Info().Msg("Yield vault stopped")
}

// seed mints amount to owner and deposits it for owner.
func seed(ctx context.Context, d *simulations.Deployment, owner types.Address, amount sdkmath.Int) error {
	if err := d.Fund(ctx, owner, amount); err != nil {
		return err
	}
	return d.Chain.Execute(ctx, owner, func(call chain.Call) error {
		_, err := d.Ledger.Deposit(call, amount, owner)
		return err
	})
}
