// Package traceroute provides the core scanning functionality for nmaptrace.
// It contains the hop and scan-result data model, the nmap process invoker,
// the traceroute output parser, and the scan orchestrator that ties them
// together.
package traceroute

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HopStatus classifies the outcome of a single probe step.
type HopStatus string

const (
	StatusSuccess HopStatus = "success"
	StatusTimeout HopStatus = "timeout"
	StatusUnknown HopStatus = "unknown"
)

// NoResponseIP is the sentinel address recorded for hops that never answered.
const NoResponseIP = "*"

// Hop represents one probe step along the path to a target.
type Hop struct {
	// Number is the 1-based hop position, contiguous after gap filling
	Number int `json:"hop_number"`
	// IP is a dotted-quad address or the "*" sentinel, never empty
	IP string `json:"ip_address"`
	// Hostname is the resolved name when the tool reported one
	Hostname string `json:"hostname,omitempty"`
	// RTT is the round-trip time in milliseconds; nil means no timing data
	RTT *float64 `json:"rtt_ms,omitempty"`
	// Status is one of success, timeout, unknown
	Status HopStatus `json:"status"`
}

// Validate checks the hop invariants: positive number, non-empty address.
func (h *Hop) Validate() error {
	if h.Number < 1 {
		return fmt.Errorf("hop number must be positive, got %d", h.Number)
	}
	if h.IP == "" {
		return fmt.Errorf("hop %d has an empty IP address", h.Number)
	}
	return nil
}

// String renders the hop in traceroute-style single-line form.
func (h *Hop) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%2d  %s", h.Number, h.IP)
	if h.Hostname != "" {
		fmt.Fprintf(&b, " (%s)", h.Hostname)
	}
	if h.RTT != nil {
		fmt.Fprintf(&b, " %.3fms", *h.RTT)
	} else {
		b.WriteString(" *")
	}
	return b.String()
}

// ScanResult represents one completed traceroute scan.
type ScanResult struct {
	ID       uuid.UUID     `json:"id"`
	Target   string        `json:"target"`
	Port     int           `json:"port"`
	Protocol string        `json:"protocol"`
	Hops     []Hop         `json:"hops"`
	ScanTime time.Time     `json:"scan_time"`
	Duration time.Duration `json:"scan_duration"`

	// Derived fields, recomputed whenever hops change
	TargetReached bool `json:"target_reached"`
	TotalHops     int  `json:"total_hops"`
}

// NewScanResult creates an empty result for the given target.
func NewScanResult(target string, port int, protocol string) *ScanResult {
	r := &ScanResult{
		ID:       uuid.New(),
		Target:   target,
		Port:     port,
		Protocol: protocol,
		ScanTime: time.Now(),
	}
	r.recompute()
	return r
}

// AddHop appends a hop and refreshes the derived fields.
func (r *ScanResult) AddHop(hop Hop) {
	r.Hops = append(r.Hops, hop)
	r.recompute()
}

// SetHops replaces the hop sequence and refreshes the derived fields.
func (r *ScanResult) SetHops(hops []Hop) {
	r.Hops = hops
	r.recompute()
}

// recompute refreshes TotalHops and TargetReached. A target counts as
// reached when the last hop's IP equals the target or the last hop's
// status is success; an empty hop list is never reached.
func (r *ScanResult) recompute() {
	r.TotalHops = len(r.Hops)
	r.TargetReached = false
	if len(r.Hops) > 0 {
		last := r.Hops[len(r.Hops)-1]
		r.TargetReached = last.IP == r.Target || last.Status == StatusSuccess
	}
}

// Statistics holds per-result aggregates derived from the hop sequence.
type Statistics struct {
	TotalHops      int
	TargetReached  bool
	SuccessfulHops int
	TimeoutHops    int
	AvgRTT         *float64
	MinRTT         *float64
	MaxRTT         *float64
}

// Statistics computes aggregates over the current hop sequence. RTT
// statistics cover only hops that carry timing data and are nil when no
// hop does.
func (r *ScanResult) Statistics() Statistics {
	stats := Statistics{
		TotalHops:     r.TotalHops,
		TargetReached: r.TargetReached,
	}

	var sum float64
	var count int
	for i := range r.Hops {
		hop := &r.Hops[i]
		switch hop.Status {
		case StatusSuccess:
			stats.SuccessfulHops++
		case StatusTimeout:
			stats.TimeoutHops++
		}
		if hop.RTT == nil {
			continue
		}
		rtt := *hop.RTT
		sum += rtt
		count++
		if stats.MinRTT == nil || rtt < *stats.MinRTT {
			v := rtt
			stats.MinRTT = &v
		}
		if stats.MaxRTT == nil || rtt > *stats.MaxRTT {
			v := rtt
			stats.MaxRTT = &v
		}
	}
	if count > 0 {
		avg := sum / float64(count)
		stats.AvgRTT = &avg
	}
	return stats
}

// String renders the result as a readable multi-line report.
func (r *ScanResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Traceroute to %s:%d (%s)\n", r.Target, r.Port, strings.ToUpper(r.Protocol))
	fmt.Fprintf(&b, "Scan time: %s\n\n", r.ScanTime.Format("2006-01-02 15:04:05"))
	for i := range r.Hops {
		b.WriteString(r.Hops[i].String())
		b.WriteByte('\n')
	}
	stats := r.Statistics()
	b.WriteString("\nStatistics:\n")
	fmt.Fprintf(&b, "  Total hops: %d\n", stats.TotalHops)
	reached := "No"
	if stats.TargetReached {
		reached = "Yes"
	}
	fmt.Fprintf(&b, "  Target reached: %s\n", reached)
	fmt.Fprintf(&b, "  Successful hops: %d\n", stats.SuccessfulHops)
	if stats.AvgRTT != nil {
		fmt.Fprintf(&b, "  Average RTT: %.3f ms\n", *stats.AvgRTT)
		fmt.Fprintf(&b, "  Min RTT: %.3f ms\n", *stats.MinRTT)
		fmt.Fprintf(&b, "  Max RTT: %.3f ms\n", *stats.MaxRTT)
	}
	return b.String()
}
