package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValorVie/nmapTraceroute/internal/errors"
	"github.com/ValorVie/nmapTraceroute/internal/logging"
	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
	"github.com/ValorVie/nmapTraceroute/internal/validate"
)

// utf8BOM is prepended to every CSV file so spreadsheet applications
// detect the encoding.
const utf8BOM = "\ufeff"

// timestampLayout is used in generated file names.
const timestampLayout = "20060102_150405"

// CSVWriter writes scan results as CSV files under a fixed directory.
type CSVWriter struct {
	outputDir string
}

// NewCSVWriter creates a writer rooted at dir, creating it if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := validate.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &CSVWriter{outputDir: dir}, nil
}

// OutputDir returns the directory files are written under.
func (w *CSVWriter) OutputDir() string {
	return w.outputDir
}

// resultFilename builds a timestamped file name for one result.
func resultFilename(result *traceroute.ScanResult, ext string) string {
	target := validate.SanitizeFilename(result.Target)
	return fmt.Sprintf("traceroute_%s_%d_%s.%s",
		target, result.Port, result.ScanTime.Format(timestampLayout), ext)
}

// ensureExt appends ext when the filename does not already carry it.
func ensureExt(filename, ext string) string {
	if !strings.HasSuffix(strings.ToLower(filename), "."+ext) {
		return filename + "." + ext
	}
	return filename
}

// WriteResult writes one scan result to a CSV file and returns its path.
// An empty filename generates a timestamped one from the target.
func (w *CSVWriter) WriteResult(result *traceroute.ScanResult, filename string) (string, error) {
	if filename == "" {
		filename = resultFilename(result, "csv")
	}
	filename = ensureExt(filename, "csv")
	path := filepath.Join(w.outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to create CSV file", err)
	}
	defer file.Close()

	if _, err := file.WriteString(utf8BOM); err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}

	if err := writeResultSection(file, result); err != nil {
		return "", err
	}

	logging.Info("wrote CSV report", "path", path, "hops", len(result.Hops))
	return path, nil
}

// WriteResults writes a batch of results into one CSV file, each result
// introduced by its own metadata block.
func (w *CSVWriter) WriteResults(results []*traceroute.ScanResult, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("traceroute_batch_%s.csv", time.Now().Format(timestampLayout))
	}
	filename = ensureExt(filename, "csv")
	path := filepath.Join(w.outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to create CSV file", err)
	}
	defer file.Close()

	if _, err := file.WriteString(utf8BOM); err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}

	for i, result := range results {
		if i > 0 {
			if _, err := file.WriteString("\n"); err != nil {
				return "", errors.WrapConfigError(errors.CodeFilePermission,
					"failed to write CSV file", err)
			}
		}
		if err := writeResultSection(file, result); err != nil {
			return "", err
		}
	}

	logging.Info("wrote batch CSV report", "path", path, "results", len(results))
	return path, nil
}

// WriteSummary writes one row per result with aggregate columns only.
func (w *CSVWriter) WriteSummary(results []*traceroute.ScanResult, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("traceroute_summary_%s.csv", time.Now().Format(timestampLayout))
	}
	filename = ensureExt(filename, "csv")
	path := filepath.Join(w.outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to create CSV file", err)
	}
	defer file.Close()

	if _, err := file.WriteString(utf8BOM); err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}

	cw := csv.NewWriter(file)
	header := []string{
		"Target", "Port", "Protocol", "Scan Time",
		"Total Hops", "Target Reached", "Successful Hops", "Timeout Hops",
		"Avg RTT (ms)", "Min RTT (ms)", "Max RTT (ms)", "Duration (s)",
	}
	if err := cw.Write(header); err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}

	for _, result := range results {
		stats := result.Statistics()
		row := []string{
			result.Target,
			fmt.Sprintf("%d", result.Port),
			strings.ToUpper(result.Protocol),
			result.ScanTime.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", stats.TotalHops),
			yesNo(stats.TargetReached),
			fmt.Sprintf("%d", stats.SuccessfulHops),
			fmt.Sprintf("%d", stats.TimeoutHops),
			rttCell(stats.AvgRTT),
			rttCell(stats.MinRTT),
			rttCell(stats.MaxRTT),
			fmt.Sprintf("%.2f", result.Duration.Seconds()),
		}
		if err := cw.Write(row); err != nil {
			return "", errors.WrapConfigError(errors.CodeFilePermission,
				"failed to write CSV file", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}

	logging.Info("wrote summary CSV report", "path", path, "results", len(results))
	return path, nil
}

// writeResultSection writes the metadata header block followed by the hop
// rows for one result. Metadata lines are '#'-prefixed so the file stays
// loadable as plain CSV.
func writeResultSection(file *os.File, result *traceroute.ScanResult) error {
	stats := result.Statistics()

	meta := fmt.Sprintf(
		"# Target: %s\n# Port: %d\n# Protocol: %s\n# Scan Time: %s\n# Target Reached: %s\n# Total Hops: %d\n",
		result.Target,
		result.Port,
		strings.ToUpper(result.Protocol),
		result.ScanTime.Format("2006-01-02 15:04:05"),
		yesNo(stats.TargetReached),
		stats.TotalHops,
	)
	if _, err := file.WriteString(meta); err != nil {
		return errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}

	cw := csv.NewWriter(file)
	if err := cw.Write([]string{"Hop", "IP Address", "Hostname", "RTT (ms)", "Status"}); err != nil {
		return errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}
	if len(result.Hops) == 0 {
		// Keep hopless results visible in batch files.
		if err := cw.Write([]string{"-", traceroute.NoResponseIP, "No data", "", ""}); err != nil {
			return errors.WrapConfigError(errors.CodeFilePermission,
				"failed to write CSV file", err)
		}
	}
	for i := range result.Hops {
		hop := &result.Hops[i]
		row := []string{
			fmt.Sprintf("%d", hop.Number),
			hop.IP,
			hop.Hostname,
			rttCell(hop.RTT),
			string(hop.Status),
		}
		if err := cw.Write(row); err != nil {
			return errors.WrapConfigError(errors.CodeFilePermission,
				"failed to write CSV file", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.WrapConfigError(errors.CodeFilePermission,
			"failed to write CSV file", err)
	}
	return nil
}

// rttCell renders an optional RTT for a CSV cell.
func rttCell(rtt *float64) string {
	if rtt == nil {
		return ""
	}
	return fmt.Sprintf("%.3f", *rtt)
}
