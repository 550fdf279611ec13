package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"warden/internal/api"
	"warden/internal/core"
	"warden/internal/notify"
	"warden/internal/sentinel"
	"warden/internal/store"
)

var sentinelCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Watch download folders and scan new files as they appear",
	Long: `Poll the configured watch directories, scan what is already there, then
scan every file that appears afterwards. Threats are printed, optionally quarantined and published to NATS
when a URL is configured. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: withApp(sentinelMain),
}

func init() {
	sentinelCmd.Flags().BoolP("quarantine", "Q", false, "Quarantine threats as soon as they are detected")
	sentinelCmd.Flags().String("metrics-addr", "", "Serve /metrics, /healthz and /threats on this address")
	sentinelCmd.Flags().StringSlice("watch", nil, "Directories to watch (overrides config)")
	sentinelCmd.Flags().Bool("baseline", false, "Do not scan files already present at startup")
	rootCmd.AddCommand(sentinelCmd)
}

func sentinelMain(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	dirs := a.cfg.WatchDirs
	if watch, _ := cmd.Flags().GetStringSlice("watch"); len(watch) > 0 {
		dirs = watch
	}
	if len(dirs) == 0 {
		return errors.New("no watch directories configured")
	}

	publisher, err := notify.New(a.cfg.NATSURL, a.cfg.NATSSubject, a.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	threats := store.NewMemoryStore(1000, 4096)
	mgr := a.remediator()
	quarantine, _ := cmd.Flags().GetBool("quarantine")

	mon := sentinel.NewMonitor(a.engine(), dirs, a.logger)
	mon.Interval = a.cfg.SentinelInterval
	mon.Baseline, _ = cmd.Flags().GetBool("baseline")
	mon.OnEvent = func(msg string) { fmt.Println("[*]", msg) }
	mon.OnThreat = func(t core.Threat) {
		if !threats.Add(t) {
			return
		}
		fmt.Printf("[!] THREAT: %s [%s]\n", t.Path, t.Confidence())
		if err := publisher.Publish(ctx, t); err != nil {
			a.logger.Warn("Failed to publish threat", zap.Error(err))
		}
		if quarantine {
			if entry, err := mgr.HandleThreat(t); err != nil {
				fmt.Printf("[-] Quarantine failed: %v\n", err)
			} else if entry.QuarantinedPath != "" {
				threats.Remove(t.ID)
				fmt.Printf("[+] THREAT JAILED: %s -> %s\n", t.Path, entry.QuarantinedPath)
			}
		}
	}

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		addr = a.cfg.MetricsAddr
	}
	var srv *http.Server
	if addr != "" {
		srv = &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(threats, mgr, a.registry, a.logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("HTTP server failed", zap.Error(err))
			}
		}()
		fmt.Printf("[*] Serving metrics and threats on %s\n", addr)
	}

	if err := mon.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	mon.Stop()
	mon.Wait()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	stats := mon.Stats()
	fmt.Printf("[*] Sentinel scanned %d new files, %d threats.\n", stats.Scanned, stats.Threats)
	return nil
}
