package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"warden/internal/classifier"
	"warden/internal/config"
	"warden/internal/core"
	"warden/internal/engine"
	"warden/internal/logging"
	"warden/internal/shadow"
	"warden/internal/signatures"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden scans files, processes and removable media for malware",
	Long: banner + `
Warden classifies files with a known-bad hash set and an optional
machine-learning model, and contains threats by quarantine or deletion.
Collectors cover running processes, removable media and directories, and the
sentinel watches download folders for new drops.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "[-]", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("report", false, "Write a JSON report of the results")
}

// app holds everything a command needs. The engine is built on first use.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	layout   core.Layout
	registry *prometheus.Registry
	metrics  *engine.Metrics
	eng      *engine.Engine
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	layout := core.NewLayout(cfg.BaseDir, cfg.QuarantineDir)
	if err := layout.EnsureDirectories(); err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(layout.Logs, "warden.log")
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, JSON: cfg.LogJSON})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	return &app{
		cfg:      cfg,
		logger:   logger,
		layout:   layout,
		registry: registry,
		metrics:  engine.NewMetrics(registry),
	}, nil
}

func (a *app) engine() *engine.Engine {
	if a.eng != nil {
		return a.eng
	}
	tempDir := a.cfg.TempDir
	if tempDir == "" {
		tempDir = a.layout.Temp
	}
	ctx := engine.Context{
		Signatures: signatures.Load(a.cfg.SignaturesPath,
			signatures.WithLogger(a.logger),
			signatures.WithKeyring(a.cfg.SignatureKeyring)),
		Model:  classifier.LoadOptional(a.cfg.ModelPath, a.logger),
		Reader: shadow.Reader{TempDir: tempDir, MaxBytes: a.cfg.MaxFileBytes},
	}
	a.eng = engine.New(ctx,
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.metrics),
		engine.WithGate(engine.Gate{Threshold: a.cfg.GateThreshold}))

	fmt.Printf("[*] %s\n", ctx.Signatures.Stats())
	if !a.eng.HasModel() {
		fmt.Println("[!] No model loaded: files without a hash match will be reported as UNKNOWN.")
	}
	return a.eng
}

func (a *app) remediator() *core.RemediationManager {
	jail := core.NewQuarantineJail(a.layout.Quarantine, a.logger)
	return core.NewRemediationManager(jail, a.logger)
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// withApp adapts a command body that needs the application context.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args, a)
	}
}
