package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
)

// fakeScanner returns canned results and counts invocations.
type fakeScanner struct {
	mu        sync.Mutex
	calls     int
	active    int
	maxActive int
	delay     time.Duration
	reached   bool
	rtt       float64
	panics    bool
}

func (f *fakeScanner) ScanTarget(ctx context.Context, target string, ports []int, protocol string) *traceroute.ScanResult {
	f.mu.Lock()
	f.calls++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.panics {
		panic("scan blew up")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return makeResult(target, f.reached, f.rtt)
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeScanner) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// makeResult builds a result whose per-scan average RTT equals rtt.
func makeResult(target string, reached bool, rtt float64) *traceroute.ScanResult {
	result := traceroute.NewScanResult(target, 80, "tcp")
	if reached {
		result.SetHops([]traceroute.Hop{
			{Number: 1, IP: target, RTT: &rtt, Status: traceroute.StatusSuccess},
		})
	} else {
		result.SetHops([]traceroute.Hop{
			{Number: 1, IP: traceroute.NoResponseIP, Status: traceroute.StatusTimeout},
		})
	}
	return result
}

func testConfig() Config {
	return Config{
		Target:     "8.8.8.8",
		Ports:      []int{80},
		Protocol:   "tcp",
		Interval:   20 * time.Millisecond,
		MaxHistory: 10,
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		scanner Scanner
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			scanner: &fakeScanner{},
		},
		{
			name:    "nil scanner",
			mutate:  func(c *Config) {},
			scanner: nil,
			wantErr: true,
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Interval = 0 },
			scanner: &fakeScanner{},
			wantErr: true,
		},
		{
			name:    "zero history",
			mutate:  func(c *Config) { c.MaxHistory = 0 },
			scanner: &fakeScanner{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, tt.scanner)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIncrementalMean(t *testing.T) {
	m, err := New(testConfig(), &fakeScanner{})
	require.NoError(t, err)

	for i, rtt := range []float64{10, 20, 30} {
		m.recordResult(makeResult("8.8.8.8", true, rtt), time.Millisecond)

		stats := m.Stats()
		switch i {
		case 0:
			assert.InDelta(t, 10, stats.AvgRTT, 0.001)
		case 1:
			assert.InDelta(t, 15, stats.AvgRTT, 0.001)
		case 2:
			assert.InDelta(t, 20, stats.AvgRTT, 0.001)
		}
	}

	stats := m.Stats()
	assert.Equal(t, 3, stats.TotalScans)
	assert.Equal(t, 3, stats.SuccessfulScans)
	assert.Zero(t, stats.FailedScans)
	assert.InDelta(t, 10, stats.MinRTT, 0.001)
	assert.InDelta(t, 30, stats.MaxRTT, 0.001)
	assert.InDelta(t, 100, stats.SuccessRate(), 0.001)
	assert.True(t, stats.HasRTT())
}

func TestFailedScansDoNotSkewMean(t *testing.T) {
	m, err := New(testConfig(), &fakeScanner{})
	require.NoError(t, err)

	m.recordResult(makeResult("8.8.8.8", true, 10), time.Millisecond)
	m.recordResult(makeResult("8.8.8.8", false, 0), time.Millisecond)
	m.recordResult(makeResult("8.8.8.8", true, 30), time.Millisecond)

	stats := m.Stats()
	assert.Equal(t, 3, stats.TotalScans)
	assert.Equal(t, 2, stats.SuccessfulScans)
	assert.Equal(t, 1, stats.FailedScans)
	assert.InDelta(t, 20, stats.AvgRTT, 0.001)
	assert.InDelta(t, 66.666, stats.SuccessRate(), 0.01)
}

func TestHistoryTrimming(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHistory = 2
	m, err := New(cfg, &fakeScanner{})
	require.NoError(t, err)

	first := makeResult("8.8.8.8", true, 1)
	second := makeResult("8.8.8.8", true, 2)
	third := makeResult("8.8.8.8", true, 3)
	m.recordResult(first, time.Millisecond)
	m.recordResult(second, time.Millisecond)
	m.recordResult(third, time.Millisecond)

	history := m.History()
	require.Len(t, history, 2)
	assert.Same(t, second, history[0])
	assert.Same(t, third, history[1])
	assert.Same(t, third, m.Current())

	// The session mean still covers all three scans.
	assert.InDelta(t, 2, m.Stats().AvgRTT, 0.001)
}

func TestStatusChangeCallback(t *testing.T) {
	m, err := New(testConfig(), &fakeScanner{})
	require.NoError(t, err)

	var transitions []bool
	m.OnStatusChange = func(reachable bool) {
		transitions = append(transitions, reachable)
	}

	m.recordResult(makeResult("8.8.8.8", true, 1), time.Millisecond)
	m.recordResult(makeResult("8.8.8.8", true, 1), time.Millisecond)
	m.recordResult(makeResult("8.8.8.8", false, 0), time.Millisecond)
	m.recordResult(makeResult("8.8.8.8", true, 1), time.Millisecond)

	assert.Equal(t, []bool{true, false, true}, transitions)
}

func TestStartStopLifecycle(t *testing.T) {
	scanner := &fakeScanner{reached: true, rtt: 5}
	m, err := New(testConfig(), scanner)
	require.NoError(t, err)

	assert.Equal(t, "idle", m.State())

	m.Start(context.Background())
	assert.Equal(t, "running", m.State())
	assert.True(t, m.Running())

	// Starting again while running is a no-op.
	session := m.SessionID()
	m.Start(context.Background())
	assert.Equal(t, session, m.SessionID())

	time.Sleep(70 * time.Millisecond)
	m.Stop()

	assert.Equal(t, "idle", m.State())
	assert.False(t, m.Running())
	assert.GreaterOrEqual(t, scanner.callCount(), 2)
	assert.GreaterOrEqual(t, m.Stats().TotalScans, 2)

	// A second stop after a full stop is a no-op.
	m.Stop()
	assert.Equal(t, "idle", m.State())
}

func TestSlowScanNeverOverlaps(t *testing.T) {
	// Scans take three intervals each. The loop must run them back to
	// back rather than stacking a new scan on every elapsed interval.
	scanner := &fakeScanner{reached: true, rtt: 5, delay: 60 * time.Millisecond}
	m, err := New(testConfig(), scanner)
	require.NoError(t, err)

	m.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	m.Stop()

	assert.Equal(t, 1, scanner.maxConcurrent())

	// Invocations are bounded by the scan duration, not the interval:
	// ten 20ms intervals elapsed, but each scan held the loop for 60ms.
	calls := scanner.callCount()
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 5)
	assert.Equal(t, calls, m.Stats().TotalScans)
}

func TestStartResetsSession(t *testing.T) {
	scanner := &fakeScanner{reached: true, rtt: 5}
	m, err := New(testConfig(), scanner)
	require.NoError(t, err)

	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	firstSession := m.SessionID()
	require.Positive(t, m.Stats().TotalScans)

	m.Start(context.Background())
	secondSession := m.SessionID()
	m.Stop()

	assert.NotEqual(t, firstSession, secondSession)
}

func TestLoopSurvivesPanic(t *testing.T) {
	scanner := &fakeScanner{panics: true}
	m, err := New(testConfig(), scanner)
	require.NoError(t, err)

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	stats := m.Stats()
	assert.Positive(t, stats.TotalScans)
	assert.Equal(t, stats.TotalScans, stats.FailedScans)
	assert.GreaterOrEqual(t, scanner.callCount(), 2)
}

func TestContextCancelStopsLoop(t *testing.T) {
	scanner := &fakeScanner{reached: true, rtt: 5}
	m, err := New(testConfig(), scanner)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(30 * time.Millisecond)

	calls := scanner.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, scanner.callCount())

	m.Stop()
}

func TestStatsZeroValue(t *testing.T) {
	stats := newStats()
	assert.Zero(t, stats.SuccessRate())
	assert.False(t, stats.HasRTT())
}
