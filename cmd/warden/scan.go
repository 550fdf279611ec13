package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"warden/internal/collectors"
	"warden/internal/core"
	"warden/internal/engine"
	"warden/internal/stages"
	"warden/internal/utils"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path...]",
	Short: "Scan files or directories",
	Long: `Scan one or more files. Directories are walked recursively, skipping the
configured excluded directory names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(scanMain),
}

var processesCmd = &cobra.Command{
	Use:   "processes",
	Short: "Scan the executables of running processes",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		warnPrivileges("processes")
		s := collectors.NewProcessScanner(a.engine(), a.logger)
		s.Every, s.Progress = a.cfg.ProgressEvery, printProgress
		return runCollector(cmd, a, s)
	}),
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Scan mounted removable and optical media",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		warnPrivileges("media")
		return runCollector(cmd, a, newMediaScanner(a))
	}),
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run processes, removable media and watched directories in sequence",
	Args:  cobra.NoArgs,
	RunE:  withApp(sweepMain),
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, processesCmd, mediaCmd, sweepCmd} {
		c.Flags().BoolP("quarantine", "Q", false, "Quarantine every threat found")
		rootCmd.AddCommand(c)
	}
}

func scanMain(cmd *cobra.Command, args []string, a *app) error {
	quarantine, _ := cmd.Flags().GetBool("quarantine")
	eng := a.engine()
	var res core.ScanResult
	var dirs []string

	for _, path := range args {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			dirs = append(dirs, path)
			continue
		}
		v := eng.Scan(path)
		printVerdict(v)
		res.Processed++
		if v.Status == engine.StatusError {
			res.Errors++
		}
		if eng.Escalate(v) {
			res.Threats = append(res.Threats, core.NewThreat(core.SourceFile, v))
		}
	}
	res.Summary = fmt.Sprintf("Scanned %d files.", res.Processed)

	if len(dirs) > 0 {
		s := newDirectoryScanner(a, dirs)
		dres, err := s.Run(cmd.Context())
		res.Merge(dres)
		if err != nil {
			finish(cmd, a, res, quarantine)
			return err
		}
	}
	finish(cmd, a, res, quarantine)
	return nil
}

func sweepMain(cmd *cobra.Command, _ []string, a *app) error {
	warnPrivileges("sweep")
	eng := a.engine()

	procs := collectors.NewProcessScanner(eng, a.logger)
	procs.Every, procs.Progress = a.cfg.ProgressEvery, printProgress

	opts := stages.Options{Logger: a.logger}
	if quarantine, _ := cmd.Flags().GetBool("quarantine"); quarantine {
		opts.Remediate = a.remediator()
	}

	res, err := stages.RunSweep(cmd.Context(), opts,
		stages.Stage{Number: 1, Description: "Scanning running processes", Scanner: procs},
		stages.Stage{Number: 2, Description: "Scanning removable media", Scanner: newMediaScanner(a)},
		stages.Stage{Number: 3, Description: "Scanning watched directories", Scanner: newDirectoryScanner(a, a.cfg.WatchDirs)},
	)
	// threats were already handled stage by stage
	finish(cmd, a, res, false)
	return err
}

func runCollector(cmd *cobra.Command, a *app, s core.Scanner) error {
	res, err := s.Run(cmd.Context())
	if errors.Is(err, collectors.ErrBusy) {
		fmt.Println("[!] A scan is already running.")
		return nil
	}
	quarantine, _ := cmd.Flags().GetBool("quarantine")
	finish(cmd, a, res, quarantine)
	return err
}

func newMediaScanner(a *app) *collectors.MediaScanner {
	s := collectors.NewMediaScanner(a.engine(), a.logger)
	s.Exclude = a.cfg.MediaExcludeDirs
	s.Every, s.Progress = a.cfg.ProgressEvery, printProgress
	return s
}

func newDirectoryScanner(a *app, roots []string) *collectors.DirectoryScanner {
	s := collectors.NewDirectoryScanner(a.engine(), roots, a.logger)
	s.Exclude = a.cfg.ExcludeDirs
	s.Every, s.Progress = a.cfg.ProgressEvery, printProgress
	return s
}

func warnPrivileges(op string) {
	if msg := utils.PrivilegeWarning(op); msg != "" {
		fmt.Println("[!]", msg)
	}
}
