package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"warden/internal/collectors"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "List neighbours from the ARP cache",
	Long: `List hosts recently seen on the local network according to the
operating system's ARP cache. No packets are sent apart from reverse DNS lookups.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		d := collectors.NewNetworkDiscoverer(a.cfg.DNSTimeout, a.logger)
		hosts := d.Discover(cmd.Context())

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(hosts)
		}
		if len(hosts) == 0 {
			fmt.Println("[*] No hosts in the ARP cache.")
			return nil
		}
		fmt.Printf("%-16s %-8s %s\n", "ADDRESS", "STATUS", "NAME")
		for _, h := range hosts {
			fmt.Printf("%-16s %-8s %s\n", h.Address, h.Status, h.Name)
		}
		return nil
	}),
}

func init() {
	networkCmd.Flags().Bool("json", false, "Print hosts as JSON")
	rootCmd.AddCommand(networkCmd)
}
