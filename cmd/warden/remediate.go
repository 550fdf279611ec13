package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var quarantineCmd = &cobra.Command{
	Use:   "quarantine [path...]",
	Short: "Move files into the quarantine directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(_ *cobra.Command, args []string, a *app) error {
		mgr := a.remediator()
		failed := 0
		for _, path := range args {
			entry, err := mgr.Quarantine(path)
			if err != nil {
				fmt.Printf("[-] %v\n", err)
				failed++
				continue
			}
			fmt.Printf("[+] THREAT JAILED: %s -> %s\n", path, entry.QuarantinedPath)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d targets could not be quarantined", failed, len(args))
		}
		return nil
	}),
}

var restoreCmd = &cobra.Command{
	Use:   "restore [name|id]",
	Short: "Restore a quarantined file to its original location",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(_ *cobra.Command, args []string, a *app) error {
		dest, err := a.remediator().Jail.Restore(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("[+] RESTORED: %s -> %s\n", args[0], dest)
		return nil
	}),
}

var listQuarantineCmd = &cobra.Command{
	Use:   "quarantined",
	Short: "List quarantined files",
	Args:  cobra.NoArgs,
	RunE: withApp(func(_ *cobra.Command, _ []string, a *app) error {
		entries, err := a.remediator().Jail.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("[*] Quarantine is empty.")
			return nil
		}
		for _, e := range entries {
			when := "-"
			if !e.QuarantinedAt.IsZero() {
				when = e.QuarantinedAt.Local().Format("2006-01-02 15:04:05")
			}
			id := e.ID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Printf("%-8s %s  %s  <- %s\n", id, when, e.Name, e.OriginalPath)
		}
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete [path...]",
	Short: "Permanently delete files or directory trees",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to delete without --yes")
		}
		mgr := a.remediator()
		failed := 0
		for _, path := range args {
			if err := mgr.Delete(path); err != nil {
				fmt.Printf("[-] %v\n", err)
				failed++
				continue
			}
			fmt.Printf("[+] DELETED: %s\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d targets could not be deleted", failed, len(args))
		}
		return nil
	}),
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "Confirm permanent deletion")
	rootCmd.AddCommand(quarantineCmd, restoreCmd, listQuarantineCmd, deleteCmd)
}
