// Package monitor implements the interval scan loop: it repeats a
// traceroute scan on a fixed period, tracks running statistics, keeps a
// bounded result history, and guards against overlapping scans.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ValorVie/nmapTraceroute/internal/logging"
	"github.com/ValorVie/nmapTraceroute/internal/metrics"
	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
)

// stopTimeout bounds how long Stop waits for the loop to acknowledge.
const stopTimeout = 5 * time.Second

// Scanner is the scan operation the loop repeats. ScanTarget never fails;
// degraded scans come back as empty results.
type Scanner interface {
	ScanTarget(ctx context.Context, target string, ports []int, protocol string) *traceroute.ScanResult
}

// state tracks the session lifecycle: idle -> running -> stopping -> idle.
type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopping
)

func (s state) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Stats aggregates results over one monitoring session. The mean RTT is
// maintained incrementally so truncating the history buffer never skews
// the session-wide statistic.
type Stats struct {
	TotalScans      int
	SuccessfulScans int
	FailedScans     int
	AvgRTT          float64
	MinRTT          float64
	MaxRTT          float64
	LastScanTime    time.Time
}

// SuccessRate returns the percentage of scans that reached the target.
func (s *Stats) SuccessRate() float64 {
	if s.TotalScans == 0 {
		return 0
	}
	return float64(s.SuccessfulScans) / float64(s.TotalScans) * 100
}

// HasRTT reports whether any RTT sample has been recorded.
func (s *Stats) HasRTT() bool {
	return !math.IsInf(s.MinRTT, 1)
}

func newStats() Stats {
	return Stats{MinRTT: math.Inf(1)}
}

// Config holds the monitoring session parameters.
type Config struct {
	Target     string
	Ports      []int
	Protocol   string
	Interval   time.Duration
	MaxHistory int
}

// Monitor repeats scans of one target on a fixed interval.
type Monitor struct {
	cfg     Config
	scanner Scanner
	metrics *metrics.Metrics

	mu             sync.Mutex
	state          state
	scanInProgress bool
	history        []*traceroute.ScanResult
	stats          Stats
	current        *traceroute.ScanResult
	lastReachable  *bool
	sessionID      uuid.UUID

	stopCh chan struct{}
	doneCh chan struct{}

	// OnScanComplete is invoked after every completed scan.
	OnScanComplete func(*traceroute.ScanResult)
	// OnStatusChange is invoked when target reachability flips.
	OnStatusChange func(reachable bool)
}

// New creates a monitor for the given target.
func New(cfg Config, scanner Scanner) (*Monitor, error) {
	if scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}
	if cfg.MaxHistory < 1 {
		return nil, fmt.Errorf("max history must be at least 1, got %d", cfg.MaxHistory)
	}

	return &Monitor{
		cfg:     cfg,
		scanner: scanner,
		metrics: metrics.Global(),
		stats:   newStats(),
	}, nil
}

// Start begins the periodic scan activity. Calling Start while the
// session is already running is a no-op with a warning. Statistics and
// history are reset on every start.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		logging.WarnMonitor("monitoring already running, start ignored",
			"target", m.cfg.Target)
		return
	}
	m.state = stateRunning
	m.stats = newStats()
	m.history = nil
	m.current = nil
	m.lastReachable = nil
	m.scanInProgress = false
	m.sessionID = uuid.New()
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	m.metrics.MonitorSessionStarted()
	logging.InfoMonitor("monitoring started",
		"session", m.sessionID,
		"target", m.cfg.Target,
		"interval", m.cfg.Interval,
		"max_history", m.cfg.MaxHistory)

	go m.loop(ctx, stopCh, doneCh)
}

// Stop halts the periodic activity and waits briefly for acknowledgment.
// It is idempotent: a second call while stopping or after a full stop is
// a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != stateRunning {
		m.mu.Unlock()
		logging.Debug("stop ignored, monitor not running")
		return
	}
	m.state = stateStopping
	close(m.stopCh)
	doneCh := m.doneCh
	m.mu.Unlock()

	select {
	case <-doneCh:
	case <-time.After(stopTimeout):
		logging.WarnMonitor("timed out waiting for scan loop to stop")
	}

	m.mu.Lock()
	m.state = stateIdle
	m.mu.Unlock()

	m.metrics.MonitorSessionStopped()
	logging.InfoMonitor("monitoring stopped", "target", m.cfg.Target)
}

// State returns the current lifecycle state as a string.
func (m *Monitor) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.String()
}

// Running reports whether the session is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateRunning
}

// ScanInProgress reports whether a scan is currently in flight.
func (m *Monitor) ScanInProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanInProgress
}

func (m *Monitor) setScanInProgress(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanInProgress = v
}

// Stats returns a copy of the running session statistics.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// History returns a copy of the bounded result history, oldest first.
func (m *Monitor) History() []*traceroute.ScanResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*traceroute.ScanResult, len(m.history))
	copy(out, m.history)
	return out
}

// Current returns the most recent scan result, or nil before the first scan.
func (m *Monitor) Current() *traceroute.ScanResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SessionID returns the identifier of the current or last session.
func (m *Monitor) SessionID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// loop is the periodic scan activity. Cancellation is cooperative: the
// stop channel is checked at the top of each iteration and during sleeps.
func (m *Monitor) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		// Anti-overlap guard: never start a second scan while one is in
		// flight. Skip the tick and wait a full interval.
		if m.ScanInProgress() {
			logging.WarnMonitor("previous scan still in flight, skipping tick",
				"target", m.cfg.Target)
			m.metrics.IncrementTicksSkipped()
			if !m.sleep(ctx, stopCh, m.cfg.Interval) {
				return
			}
			continue
		}

		m.setScanInProgress(true)
		start := time.Now()
		result, err := m.runScan(ctx)
		elapsed := time.Since(start)

		if err != nil {
			// A single bad iteration never terminates monitoring.
			logging.ErrorMonitor("scan iteration failed", err, "target", m.cfg.Target)
			m.recordFailure()
			m.setScanInProgress(false)
			if !m.sleep(ctx, stopCh, m.cfg.Interval) {
				return
			}
			continue
		}

		m.recordResult(result, elapsed)
		m.setScanInProgress(false)

		wait := m.cfg.Interval - elapsed
		if wait <= 0 {
			logging.WarnMonitor("scan duration exceeds interval, schedule falling behind",
				"elapsed", elapsed, "interval", m.cfg.Interval)
			continue
		}
		if !m.sleep(ctx, stopCh, wait) {
			return
		}
	}
}

// runScan executes one scan, converting a panic from the scan call into
// an error so the loop survives it.
func (m *Monitor) runScan(ctx context.Context) (result *traceroute.ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("scan panicked: %v", r)
		}
	}()
	return m.scanner.ScanTarget(ctx, m.cfg.Target, m.cfg.Ports, m.cfg.Protocol), nil
}

// sleep waits for d or until stop/cancel. Returns false when the loop
// should exit.
func (m *Monitor) sleep(ctx context.Context, stopCh <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// recordResult folds one completed scan into stats, history, and the
// callbacks.
func (m *Monitor) recordResult(result *traceroute.ScanResult, elapsed time.Duration) {
	m.mu.Lock()

	m.stats.TotalScans++
	m.stats.LastScanTime = time.Now()

	stats := result.Statistics()
	if stats.TargetReached {
		m.stats.SuccessfulScans++
		if stats.AvgRTT != nil {
			sample := *stats.AvgRTT
			if sample < m.stats.MinRTT {
				m.stats.MinRTT = sample
			}
			if sample > m.stats.MaxRTT {
				m.stats.MaxRTT = sample
			}
			// Incremental mean over the whole session; replaying the
			// truncated history would understate it.
			n := float64(m.stats.SuccessfulScans)
			m.stats.AvgRTT += (sample - m.stats.AvgRTT) / n
		}
	} else {
		m.stats.FailedScans++
	}

	m.history = append(m.history, result)
	if len(m.history) > m.cfg.MaxHistory {
		m.history = m.history[len(m.history)-m.cfg.MaxHistory:]
	}
	m.current = result

	statusChanged := m.lastReachable == nil || *m.lastReachable != stats.TargetReached
	reached := stats.TargetReached
	m.lastReachable = &reached

	historyLen := len(m.history)
	onComplete := m.OnScanComplete
	onStatus := m.OnStatusChange
	m.mu.Unlock()

	m.metrics.SetMonitorHistorySize(historyLen)

	if onComplete != nil {
		onComplete(result)
	}
	if statusChanged && onStatus != nil {
		onStatus(reached)
	}

	logging.Debug("monitor scan recorded",
		"target", m.cfg.Target,
		"elapsed", elapsed,
		"reached", reached,
		"history", historyLen)
}

// recordFailure counts an iteration that failed before producing a result.
func (m *Monitor) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalScans++
	m.stats.FailedScans++
	m.stats.LastScanTime = time.Now()
}
