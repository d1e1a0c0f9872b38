package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/app"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	scanDir      = flag.String("scan", "", "Analyze a log directory once and exit (no server)")
	outDir       = flag.String("out", ".", "Output directory for one-shot scan exports")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Indago version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Merge port flags (shorthand takes precedence)
	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> files -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("indago.toml"); err == nil {
			configFiles = append(configFiles, "indago.toml")
		} else if _, err := os.Stat("deployments/local/indago.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/indago.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	logger = common.InitLogger(config)
	common.InstallCrashHandler(filepath.Dir(common.GetLogFilePath(logger)))

	common.PrintBanner(common.GetFullVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Str("environment", config.Environment).
		Msg("Application configuration loaded")

	if *scanDir != "" {
		os.Exit(runOneShotScan(*scanDir, *outDir))
	}

	logger.Info().
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Msg("Starting Indago server")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	srv := server.New(application)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Give goroutine a moment to start
	time.Sleep(100 * time.Millisecond)

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	logger.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// runOneShotScan analyzes one directory and writes the workbook and bundle
// into outDir. Used for desktop-style batch analysis without the server.
func runOneShotScan(dir, outDir string) int {
	// One-shot runs are transient, keep everything in memory
	config.Storage.Badger.InMemory = true
	config.Retention.Enabled = false
	if len(config.Analysis.ScanRoots) > 0 {
		config.Analysis.ScanRoots = append(config.Analysis.ScanRoots, dir)
	}

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	ctx := context.Background()
	run, err := application.AnalyzerService.AnalyzeDirectory(ctx, dir)
	if err != nil {
		if errors.Is(err, models.ErrNoRecords) {
			logger.Error().Str("dir", dir).Msg("No valid dependency logs found")
		} else {
			logger.Error().Err(err).Str("dir", dir).Msg("Analysis failed")
		}
		return 1
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		logger.Error().Err(err).Str("dir", outDir).Msg("Failed to create output directory")
		return 1
	}

	workbook, err := application.ExportService.ExcelWorkbook(run.Tables)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build workbook")
		return 1
	}
	workbookPath := filepath.Join(outDir, config.Export.WorkbookName)
	if err := os.WriteFile(workbookPath, workbook, 0644); err != nil {
		logger.Error().Err(err).Str("path", workbookPath).Msg("Failed to write workbook")
		return 1
	}

	bundle, err := application.ExportService.Bundle(run)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build export bundle")
		return 1
	}
	bundlePath := filepath.Join(outDir, config.Export.BundleName)
	if err := os.WriteFile(bundlePath, bundle, 0644); err != nil {
		logger.Error().Err(err).Str("path", bundlePath).Msg("Failed to write bundle")
		return 1
	}

	logger.Info().
		Str("run_id", run.ID).
		Int("records", run.RecordCount).
		Str("workbook", workbookPath).
		Str("bundle", bundlePath).
		Msg("Analysis complete")

	return 0
}
