package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
)

const checkTimeout = 15 * time.Second

// checkCmd verifies that the external nmap binary is usable.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that nmap is installed and responding",
	Long: `Locate the nmap binary on PATH (or in the common install locations
for this platform) and query its version. Scanning requires a working
nmap installation; this command confirms it before any scan is run.`,
	Example: `  nmaptrace check`,
	Run:     runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	scanner, err := traceroute.NewScanner(cfg.Scan.Protocol, cfg.Scan.MaxHops, cfg.ScanTimeout(), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmap not found: %v\n", err)
		fmt.Fprintln(os.Stderr, "Install nmap from https://nmap.org/download.html and ensure it is on PATH.")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	version, err := scanner.CheckTool(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmap found but not responding: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("nmap is available: %s\n", version)
}
