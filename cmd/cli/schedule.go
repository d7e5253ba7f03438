package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ValorVie/nmapTraceroute/internal/report"
	"github.com/ValorVie/nmapTraceroute/internal/schedule"
	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
	"github.com/ValorVie/nmapTraceroute/internal/validate"
)

var (
	scheduleName        string
	scheduleCron        string
	scheduleTargetsFile string
	schedulePorts       string
	scheduleProtocol    string
)

// scheduleCmd represents the schedule command.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run recurring batch scans on a cron expression",
	Long: `Run a batch traceroute of a targets file on a cron schedule. Each
firing scans every target and writes a summary CSV; firings that would
overlap a still-running batch are skipped. The command runs until
interrupted.`,
	Example: `  nmaptrace schedule --cron "*/15 * * * *" --targets-file targets.txt
  nmaptrace schedule --name nightly --cron "0 2 * * *" --targets-file targets.txt --ports 443`,
	Run: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleName, "name", "batch", "Job name used in logs and report files")
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron expression, e.g. '*/15 * * * *' (required)")
	scheduleCmd.Flags().StringVar(&scheduleTargetsFile, "targets-file", "", "File with one target per line (required)")
	scheduleCmd.Flags().StringVarP(&schedulePorts, "ports", "p", "", "Port specification, e.g. '80' or '22,80-82,443'")
	scheduleCmd.Flags().StringVar(&scheduleProtocol, "protocol", "", "Scan protocol: tcp or udp")

	_ = scheduleCmd.MarkFlagRequired("cron")
	_ = scheduleCmd.MarkFlagRequired("targets-file")
}

func runSchedule(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if schedulePorts != "" {
		cfg.Scan.Ports = schedulePorts
	}
	if scheduleProtocol != "" {
		cfg.Scan.Protocol = scheduleProtocol
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
	targets, err := traceroute.ReadTargetsFile(scheduleTargetsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(targets) == 0 {
		fmt.Fprintf(os.Stderr, "Error: targets file %s contains no targets\n", scheduleTargetsFile)
		os.Exit(1)
	}

	scanner, err := traceroute.NewScanner(cfg.Scan.Protocol, cfg.Scan.MaxHops, cfg.ScanTimeout(), cfg.Scan.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	csvWriter, err := report.NewCSVWriter(cfg.Output.CSVDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sink := func(jobName string, results []*traceroute.ScanResult) {
		report.PrintBatchSummary(os.Stdout, results)
		path, err := csvWriter.WriteSummary(results, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing summary CSV: %v\n", err)
			return
		}
		fmt.Printf("Summary CSV for job %q written to %s\n", jobName, path)
	}

	scheduler := schedule.NewScheduler(scanner, sink)
	if err := scheduler.AddJob(schedule.JobConfig{
		Name:     scheduleName,
		CronExpr: scheduleCron,
		Targets:  targets,
		Ports:    ports,
		Protocol: cfg.Scan.Protocol,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scheduled job %q (%s) for %d targets (Ctrl+C to stop)\n",
		scheduleName, scheduleCron, len(targets))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nStopping scheduler...")
	scheduler.Stop()
}
