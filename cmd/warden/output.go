package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/core"
	"warden/internal/engine"
)

func printVerdict(v engine.Verdict) {
	prefix := "[+]"
	switch v.Status {
	case engine.StatusUnsafe:
		prefix = "[!]"
	case engine.StatusUnknown:
		prefix = "[?]"
	case engine.StatusError:
		prefix = "[-]"
	}
	fmt.Printf("%s %-7s %-14s %s\n", prefix, v.Status, v.ConfidenceString(), v.Path)
}

func printResult(res core.ScanResult) {
	fmt.Printf("\n[*] %s\n", res.Summary)
	fmt.Printf("    Processed: %d  Skipped: %d  Errors: %d\n", res.Processed, res.Skipped, res.Errors)
	if len(res.Threats) == 0 {
		fmt.Println("[+] No threats found.")
		return
	}
	fmt.Printf("[!] %d threat(s):\n", len(res.Threats))
	for _, t := range res.Threats {
		line := fmt.Sprintf("    %-14s %-13s %s", t.Confidence(), t.Source, t.Path)
		if t.PID != 0 {
			line += fmt.Sprintf(" (pid %d %s)", t.PID, t.ProcessName)
		}
		fmt.Println(line)
	}
}

func printProgress(message string, processed int) {
	fmt.Printf("\r[*] %s (%d)", message, processed)
}

// finish prints, optionally quarantines and reports a collector result.
func finish(cmd *cobra.Command, a *app, res core.ScanResult, quarantine bool) {
	fmt.Println()
	printResult(res)

	if quarantine && len(res.Threats) > 0 {
		mgr := a.remediator()
		for _, t := range res.Threats {
			entry, err := mgr.HandleThreat(t)
			switch {
			case err != nil:
				fmt.Printf("[-] Quarantine failed: %v\n", err)
			case entry.QuarantinedPath != "":
				fmt.Printf("[+] THREAT JAILED: %s -> %s\n", t.Path, entry.QuarantinedPath)
			}
		}
	}

	if report, _ := cmd.Flags().GetBool("report"); report {
		path, err := core.WriteReport(a.layout.Reports, res)
		if err != nil {
			fmt.Printf("[-] Report failed: %v\n", err)
			return
		}
		fmt.Printf("[REPORT] Generated %s\n", path)
	}
}
