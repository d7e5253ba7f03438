package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ValorVie/nmapTraceroute/internal/report"
	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
	"github.com/ValorVie/nmapTraceroute/internal/validate"
)

var (
	scanTarget      string
	scanTargetsFile string
	scanPorts       string
	scanProtocol    string
	scanMaxHops     int
	scanTimeout     int
	scanCSV         bool
	scanHTML        bool
	scanSummaryCSV  bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Trace the network path to one or more targets",
	Long: `Run an nmap traceroute against a single target or a file of targets.
Each scan traces the path to the first port of the port specification
and records per-hop IP, hostname, and round-trip time.

Results are printed as a console table. CSV and HTML reports can be
written alongside with --csv and --html.`,
	Example: `  nmaptrace scan --target 8.8.8.8
  nmaptrace scan --target example.com --ports "22,80-82,443" --protocol udp
  nmaptrace scan --target 1.1.1.1 --max-hops 20 --timeout 60 --csv --html
  nmaptrace scan --targets-file targets.txt --summary-csv`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanTarget, "target", "t", "", "Target IP address or domain name")
	scanCmd.Flags().StringVar(&scanTargetsFile, "targets-file", "", "File with one target per line ('#' comments allowed)")
	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "", "Port specification, e.g. '80' or '22,80-82,443'")
	scanCmd.Flags().StringVar(&scanProtocol, "protocol", "", "Scan protocol: tcp or udp")
	scanCmd.Flags().IntVar(&scanMaxHops, "max-hops", 0, "Maximum number of hops to trace (1-255)")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Per-scan timeout in seconds (5-300)")
	scanCmd.Flags().BoolVar(&scanCSV, "csv", false, "Write a CSV report for each result")
	scanCmd.Flags().BoolVar(&scanHTML, "html", false, "Write an HTML report for each result")
	scanCmd.Flags().BoolVar(&scanSummaryCSV, "summary-csv", false, "Write a one-row-per-target summary CSV (batch mode)")

	scanCmd.MarkFlagsMutuallyExclusive("target", "targets-file")
}

func runScan(cmd *cobra.Command, args []string) {
	if scanTarget == "" && scanTargetsFile == "" {
		fmt.Fprintf(os.Stderr, "Error: either --target or --targets-file must be specified\n\n")
		_ = cmd.Help()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override config defaults.
	if scanPorts != "" {
		cfg.Scan.Ports = scanPorts
	}
	if scanProtocol != "" {
		cfg.Scan.Protocol = scanProtocol
	}
	if scanMaxHops != 0 {
		cfg.Scan.MaxHops = scanMaxHops
	}
	if scanTimeout != 0 {
		cfg.Scan.TimeoutSec = scanTimeout
	}
	if verbose {
		cfg.Scan.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ports, err := validate.ParsePortList(cfg.Scan.Ports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if scanTarget != "" {
		if err := validate.ValidateTarget(scanTarget); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := validate.ValidateTargetsFile(scanTargetsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	scanner, err := traceroute.NewScanner(cfg.Scan.Protocol, cfg.Scan.MaxHops, cfg.ScanTimeout(), cfg.Scan.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scanTarget != "" {
		result := scanner.ScanTarget(ctx, scanTarget, ports, "")
		report.PrintResult(os.Stdout, result)
		report.PrintStatistics(os.Stdout, result)
		exportResults(cfg.Output.CSVDir, cfg.Output.HTMLDir, []*traceroute.ScanResult{result})
		return
	}

	results, err := scanner.ScanTargetsFile(ctx, scanTargetsFile, ports, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	report.PrintBatchSummary(os.Stdout, results)
	exportResults(cfg.Output.CSVDir, cfg.Output.HTMLDir, results)

	if scanSummaryCSV {
		writer, err := report.NewCSVWriter(cfg.Output.CSVDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		path, err := writer.WriteSummary(results, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing summary CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Summary CSV written to %s\n", path)
	}
}

// exportResults writes per-result CSV and HTML reports when requested.
func exportResults(csvDir, htmlDir string, results []*traceroute.ScanResult) {
	if scanCSV {
		writer, err := report.NewCSVWriter(csvDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, result := range results {
			path, err := writer.WriteResult(result, "")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
				continue
			}
			fmt.Printf("CSV report written to %s\n", path)
		}
	}

	if scanHTML {
		writer, err := report.NewHTMLWriter(htmlDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, result := range results {
			path, err := writer.WriteResult(result, "")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error writing HTML: %v\n", err)
				continue
			}
			fmt.Printf("HTML report written to %s\n", path)
		}
	}
}
