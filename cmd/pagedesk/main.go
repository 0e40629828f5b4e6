package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"pagedesk/internal/app"
	"pagedesk/pkg/config"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/shutdown"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	// parse config flags
	flags, err := config.ParseConfigFlags(os.Args[1:])
	if err != nil {
		shutdown.Abort("invalid flags", err)
	}

	// parse config file
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		shutdown.Abort("failed to load config file", err)
	}

	// parse config env variables
	envCfg, envRes := config.ParseConfigEnvs()

	// load effective config
	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		shutdown.Abort("failed to build effective config", err)
	}

	// initialize logger before validation so its warnings are visible
	logger.Init(eff.Config.Logging.Level)
	defer logger.Sync()

	if err := config.ValidateConfig(eff); err != nil {
		shutdown.Abort("invalid configuration", err)
	}
	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr)
	logger.Info("system_logical_cores", "logical_cores", runtime.NumCPU())

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("failed to initialize app", err)
	}

	// set up context and signal handling for graceful shutdown
	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	runErr := a.Run(ctx)

	// shutdown the app with a bounded timeout so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_failed", "error", err)
	}
	if runErr != nil {
		shutdown.Abort("app run failed", runErr)
	}
}
