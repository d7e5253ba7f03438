// Package cli provides the command-line interface for nmaptrace. It
// implements the Cobra-based command structure with commands for single
// and batch traceroute scans, interval monitoring, and scheduled scans.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValorVie/nmapTraceroute/internal/config"
	"github.com/ValorVie/nmapTraceroute/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nmaptrace",
	Short: "Nmap-based traceroute scanner",
	Long: `Nmaptrace traces network paths to TCP and UDP services using nmap's
--traceroute mode. It parses the hop table from nmap's output, fills in
unreported hops, and renders results as console tables, CSV files, or
self-contained HTML reports. Continuous monitoring on a fixed interval
is supported with session statistics and Prometheus metrics.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NMAPTRACE")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

// setConfigDefaults sets default values for configuration.
func setConfigDefaults() {
	viper.SetDefault("scan.protocol", "tcp")
	viper.SetDefault("scan.ports", "80")
	viper.SetDefault("scan.max_hops", 30)
	viper.SetDefault("scan.timeout_seconds", 30)

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.max_history", 100)

	viper.SetDefault("output.csv_dir", "output_data/csv")
	viper.SetDefault("output.html_dir", "output_data/charts")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen_addr", "127.0.0.1:9199")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
}

// loadConfig loads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.ConfigFileUsed())
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}

	logConfig := logging.Config{
		Level:     logging.LogLevel(level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: level == "debug",
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}
