// Package report renders scan results to console tables, CSV files, and
// self-contained HTML documents.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
)

var (
	successColor = color.New(color.FgGreen)
	timeoutColor = color.New(color.FgRed)
	unknownColor = color.New(color.FgYellow)
	titleColor   = color.New(color.FgCyan, color.Bold)
)

// statusText colors a hop status for terminal output.
func statusText(status traceroute.HopStatus) string {
	switch status {
	case traceroute.StatusSuccess:
		return successColor.Sprint(string(status))
	case traceroute.StatusTimeout:
		return timeoutColor.Sprint(string(status))
	default:
		return unknownColor.Sprint(string(status))
	}
}

// formatRTT renders a hop RTT or the no-data marker.
func formatRTT(rtt *float64) string {
	if rtt == nil {
		return "*"
	}
	return fmt.Sprintf("%.3f", *rtt)
}

// yesNo renders a boolean as Yes/No.
func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// PrintResult writes a hop table for one scan result.
func PrintResult(w io.Writer, result *traceroute.ScanResult) {
	titleColor.Fprintf(w, "Traceroute to %s:%d (%s)\n",
		result.Target, result.Port, strings.ToUpper(result.Protocol))
	fmt.Fprintf(w, "Scan time: %s\n\n", result.ScanTime.Format("2006-01-02 15:04:05"))

	table := tablewriter.NewWriter(w)
	table.Header("Hop", "IP Address", "Hostname", "RTT (ms)", "Status")

	for i := range result.Hops {
		hop := &result.Hops[i]
		hostname := hop.Hostname
		if hostname == "" {
			hostname = "-"
		}
		_ = table.Append([]string{
			fmt.Sprintf("%d", hop.Number),
			hop.IP,
			hostname,
			formatRTT(hop.RTT),
			statusText(hop.Status),
		})
	}

	_ = table.Render()
}

// PrintStatistics writes the per-result statistics table.
func PrintStatistics(w io.Writer, result *traceroute.ScanResult) {
	stats := result.Statistics()

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	_ = table.Append([]string{"Total Hops", fmt.Sprintf("%d", stats.TotalHops)})
	reached := yesNo(stats.TargetReached)
	if stats.TargetReached {
		reached = successColor.Sprint(reached)
	} else {
		reached = timeoutColor.Sprint(reached)
	}
	_ = table.Append([]string{"Target Reached", reached})
	_ = table.Append([]string{"Successful Hops", fmt.Sprintf("%d", stats.SuccessfulHops)})
	_ = table.Append([]string{"Timeout Hops", fmt.Sprintf("%d", stats.TimeoutHops)})
	if stats.AvgRTT != nil {
		_ = table.Append([]string{"Average RTT", fmt.Sprintf("%.3f ms", *stats.AvgRTT)})
		_ = table.Append([]string{"Min RTT", fmt.Sprintf("%.3f ms", *stats.MinRTT)})
		_ = table.Append([]string{"Max RTT", fmt.Sprintf("%.3f ms", *stats.MaxRTT)})
	}
	if result.Duration > 0 {
		_ = table.Append([]string{"Scan Duration", fmt.Sprintf("%.2f s", result.Duration.Seconds())})
	}

	fmt.Fprintln(w)
	_ = table.Render()
}

// PrintBatchSummary writes one summary row per scan result.
func PrintBatchSummary(w io.Writer, results []*traceroute.ScanResult) {
	titleColor.Fprintf(w, "Batch Traceroute Summary (%d targets)\n\n", len(results))

	table := tablewriter.NewWriter(w)
	table.Header("Target", "Port", "Protocol", "Hops", "Reached", "Avg RTT", "Duration")

	var successful int
	for _, result := range results {
		stats := result.Statistics()
		if stats.TargetReached {
			successful++
		}

		avgRTT := "-"
		if stats.AvgRTT != nil {
			avgRTT = fmt.Sprintf("%.3f ms", *stats.AvgRTT)
		}
		duration := "-"
		if result.Duration > 0 {
			duration = fmt.Sprintf("%.2f s", result.Duration.Seconds())
		}
		reached := yesNo(stats.TargetReached)
		if stats.TargetReached {
			reached = successColor.Sprint(reached)
		} else {
			reached = timeoutColor.Sprint(reached)
		}

		_ = table.Append([]string{
			result.Target,
			fmt.Sprintf("%d", result.Port),
			strings.ToUpper(result.Protocol),
			fmt.Sprintf("%d", stats.TotalHops),
			reached,
			avgRTT,
			duration,
		})
	}

	_ = table.Render()

	rate := 0.0
	if len(results) > 0 {
		rate = float64(successful) / float64(len(results)) * 100
	}
	fmt.Fprintf(w, "\nTotal: %d  Successful: %d  Success rate: %.1f%%\n",
		len(results), successful, rate)
}

// SessionSummary carries monitoring-session aggregates for rendering.
type SessionSummary struct {
	Target          string
	Port            int
	Protocol        string
	Interval        string
	TotalScans      int
	SuccessfulScans int
	FailedScans     int
	SuccessRate     float64
	AvgRTT          float64
	MinRTT          float64
	MaxRTT          float64
	HasRTT          bool
}

// PrintSessionSummary writes the final statistics of a monitoring session.
func PrintSessionSummary(w io.Writer, summary SessionSummary) {
	titleColor.Fprintf(w, "Monitoring summary for %s:%d (%s)\n\n",
		summary.Target, summary.Port, strings.ToUpper(summary.Protocol))

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	_ = table.Append([]string{"Total Scans", fmt.Sprintf("%d", summary.TotalScans)})
	_ = table.Append([]string{"Successful", fmt.Sprintf("%d", summary.SuccessfulScans)})
	_ = table.Append([]string{"Failed", fmt.Sprintf("%d", summary.FailedScans)})
	_ = table.Append([]string{"Success Rate", fmt.Sprintf("%.1f%%", summary.SuccessRate)})
	if summary.HasRTT {
		_ = table.Append([]string{"Average RTT", fmt.Sprintf("%.1f ms", summary.AvgRTT)})
		_ = table.Append([]string{"Min RTT", fmt.Sprintf("%.1f ms", summary.MinRTT)})
		_ = table.Append([]string{"Max RTT", fmt.Sprintf("%.1f ms", summary.MaxRTT)})
	}

	_ = table.Render()
}
