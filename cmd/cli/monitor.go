package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ValorVie/nmapTraceroute/internal/logging"
	"github.com/ValorVie/nmapTraceroute/internal/metrics"
	"github.com/ValorVie/nmapTraceroute/internal/monitor"
	"github.com/ValorVie/nmapTraceroute/internal/report"
	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
	"github.com/ValorVie/nmapTraceroute/internal/validate"
)

const metricsShutdownTimeout = 3 * time.Second

var (
	monitorTarget     string
	monitorPorts      string
	monitorProtocol   string
	monitorMaxHops    int
	monitorTimeout    int
	monitorInterval   time.Duration
	monitorMaxHistory int
	monitorMetrics    bool
	monitorListen     string
	monitorCSV        bool
	monitorHTML       bool
)

// monitorCmd represents the monitor command.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Repeatedly trace a target on a fixed interval",
	Long: `Continuously scan one target on a fixed interval, tracking success
rate and round-trip time statistics across the session. Scans that
would overlap a still-running scan are skipped.

Press Ctrl+C once for a graceful stop with a session summary; press it
a second time to exit immediately.`,
	Example: `  nmaptrace monitor --target 8.8.8.8 --interval 30s
  nmaptrace monitor --target example.com --ports 443 --max-history 500
  nmaptrace monitor --target 1.1.1.1 --metrics --metrics-listen :9199
  nmaptrace monitor --target example.com --html`,
	Run: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringVarP(&monitorTarget, "target", "t", "", "Target IP address or domain name (required)")
	monitorCmd.Flags().StringVarP(&monitorPorts, "ports", "p", "", "Port specification, e.g. '80' or '22,80-82,443'")
	monitorCmd.Flags().StringVar(&monitorProtocol, "protocol", "", "Scan protocol: tcp or udp")
	monitorCmd.Flags().IntVar(&monitorMaxHops, "max-hops", 0, "Maximum number of hops to trace (1-255)")
	monitorCmd.Flags().IntVar(&monitorTimeout, "timeout", 0, "Per-scan timeout in seconds (5-300)")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Time between scan starts, e.g. 10s or 1m")
	monitorCmd.Flags().IntVar(&monitorMaxHistory, "max-history", 0, "Number of results kept in the session history")
	monitorCmd.Flags().BoolVar(&monitorMetrics, "metrics", false, "Expose Prometheus metrics during the session")
	monitorCmd.Flags().StringVar(&monitorListen, "metrics-listen", "", "Metrics listen address (default from config)")
	monitorCmd.Flags().BoolVar(&monitorCSV, "csv", false, "Write a session CSV report on exit")
	monitorCmd.Flags().BoolVar(&monitorHTML, "html", false, "Write a session HTML report on exit")

	_ = monitorCmd.MarkFlagRequired("target")
}

func runMonitor(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if monitorPorts != "" {
		cfg.Scan.Ports = monitorPorts
	}
	if monitorProtocol != "" {
		cfg.Scan.Protocol = monitorProtocol
	}
	if monitorMaxHops != 0 {
		cfg.Scan.MaxHops = monitorMaxHops
	}
	if monitorTimeout != 0 {
		cfg.Scan.TimeoutSec = monitorTimeout
	}
	if monitorInterval != 0 {
		cfg.Monitor.Interval = monitorInterval
	}
	if monitorMaxHistory != 0 {
		cfg.Monitor.MaxHistory = monitorMaxHistory
	}
	if monitorMetrics {
		cfg.Metrics.Enabled = true
	}
	if monitorListen != "" {
		cfg.Metrics.ListenAddr = monitorListen
	}
	if verbose {
		cfg.Scan.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := validate.ValidateTarget(monitorTarget); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ports, err := validate.ParsePortList(cfg.Scan.Ports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	scanner, err := traceroute.NewScanner(cfg.Scan.Protocol, cfg.Scan.MaxHops, cfg.ScanTimeout(), cfg.Scan.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mon, err := monitor.New(monitor.Config{
		Target:     monitorTarget,
		Ports:      ports,
		Protocol:   cfg.Scan.Protocol,
		Interval:   cfg.Monitor.Interval,
		MaxHistory: cfg.Monitor.MaxHistory,
	}, scanner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mon.OnScanComplete = func(result *traceroute.ScanResult) {
		stats := result.Statistics()
		line := fmt.Sprintf("[%s] %s: %d hops, reached=%v",
			result.ScanTime.Format("15:04:05"), result.Target,
			stats.TotalHops, stats.TargetReached)
		if stats.AvgRTT != nil {
			line += fmt.Sprintf(", avg %.3f ms", *stats.AvgRTT)
		}
		fmt.Println(line)
	}
	mon.OnStatusChange = func(reachable bool) {
		if reachable {
			fmt.Printf("Target %s is now reachable\n", monitorTarget)
		} else {
			fmt.Printf("Target %s became unreachable\n", monitorTarget)
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.ListenAddr)
	}

	fmt.Printf("Monitoring %s every %v (Ctrl+C to stop)\n", monitorTarget, cfg.Monitor.Interval)
	mon.Start(context.Background())

	// First signal triggers a graceful stop, a second one aborts.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nStopping monitor (press Ctrl+C again to force quit)...")
	go func() {
		<-sigCh
		os.Exit(130)
	}()

	mon.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	stats := mon.Stats()
	summary := sessionSummary(cfg.Scan.Protocol, ports, cfg.Monitor.Interval, stats)
	fmt.Println()
	report.PrintSessionSummary(os.Stdout, summary)

	history := mon.History()
	if monitorCSV && len(history) > 0 {
		writer, err := report.NewCSVWriter(cfg.Output.CSVDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		path, err := writer.WriteResults(history, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing session CSV: %v\n", err)
		} else {
			fmt.Printf("Session CSV written to %s\n", path)
		}
	}
	if monitorHTML && len(history) > 0 {
		writer, err := report.NewHTMLWriter(cfg.Output.HTMLDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		path, err := writer.WriteSession(history, summary, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing session HTML: %v\n", err)
		} else {
			fmt.Printf("Session HTML written to %s\n", path)
		}
	}
}

// sessionSummary converts session stats into the rendering model.
func sessionSummary(protocol string, ports []int, interval time.Duration, stats monitor.Stats) report.SessionSummary {
	port := 0
	if len(ports) > 0 {
		port = ports[0]
	}
	summary := report.SessionSummary{
		Target:          monitorTarget,
		Port:            port,
		Protocol:        protocol,
		Interval:        interval.String(),
		TotalScans:      stats.TotalScans,
		SuccessfulScans: stats.SuccessfulScans,
		FailedScans:     stats.FailedScans,
		SuccessRate:     stats.SuccessRate(),
		HasRTT:          stats.HasRTT(),
	}
	if summary.HasRTT {
		summary.AvgRTT = stats.AvgRTT
		summary.MinRTT = stats.MinRTT
		summary.MaxRTT = stats.MaxRTT
	}
	return summary
}

// startMetricsServer exposes the global registry on addr.
func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		metrics.Global().Registry(),
		promhttp.HandlerOpts{},
	))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("metrics listener started", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics listener failed", "error", err)
		}
	}()
	return server
}
