package traceroute

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValorVie/nmapTraceroute/internal/errors"
	"github.com/ValorVie/nmapTraceroute/internal/metrics"
)

// fakeRunner satisfies the runner interface without invoking nmap.
type fakeRunner struct {
	output   string
	exitCode int
	err      error
	calls    int
	lastArgs []string
}

func (f *fakeRunner) BuildArgs(target string, ports []int, protocol string, maxHops int, verbose bool) []string {
	return []string{"-p", "80", "--traceroute", target}
}

func (f *fakeRunner) Run(ctx context.Context, args []string) (*Output, error) {
	f.calls++
	f.lastArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return &Output{Stdout: f.output, ExitCode: f.exitCode}, nil
}

func (f *fakeRunner) Version(ctx context.Context) (string, error) {
	return "Nmap version 7.94 ( https://nmap.org )", nil
}

func newTestScanner(exec runner) *Scanner {
	return &Scanner{
		protocol: "tcp",
		maxHops:  30,
		exec:     exec,
		parser:   NewParser(),
		metrics:  metrics.Global(),
	}
}

func TestScanTargetSuccess(t *testing.T) {
	fake := &fakeRunner{output: sampleOutput}
	scanner := newTestScanner(fake)

	result := scanner.ScanTarget(context.Background(), "8.8.8.8", []int{80}, "")
	require.NotNil(t, result)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 4, result.TotalHops)
	assert.True(t, result.TargetReached)
	assert.Positive(t, result.Duration)
}

func TestScanTargetSwallowsExecutorError(t *testing.T) {
	fake := &fakeRunner{err: errors.ErrExecTimeout("nmap -p 80 8.8.8.8")}
	scanner := newTestScanner(fake)

	result := scanner.ScanTarget(context.Background(), "8.8.8.8", []int{80}, "")
	require.NotNil(t, result)
	assert.Equal(t, "8.8.8.8", result.Target)
	assert.Equal(t, 80, result.Port)
	assert.Zero(t, result.TotalHops)
	assert.False(t, result.TargetReached)
	assert.Positive(t, result.Duration)
}

func TestScanTargetNonZeroExit(t *testing.T) {
	// Partial output with a warning exit status is still parsed.
	fake := &fakeRunner{output: sampleOutput, exitCode: 1}
	scanner := newTestScanner(fake)

	result := scanner.ScanTarget(context.Background(), "8.8.8.8", []int{80}, "")
	assert.Equal(t, 4, result.TotalHops)
}

func TestScanTargetProtocolOverride(t *testing.T) {
	fake := &fakeRunner{output: sampleOutput}
	scanner := newTestScanner(fake)

	result := scanner.ScanTarget(context.Background(), "8.8.8.8", []int{80}, "udp")
	assert.Equal(t, "udp", result.Protocol)

	// Invalid overrides fall back to the instance default.
	result = scanner.ScanTarget(context.Background(), "8.8.8.8", []int{80}, "icmp")
	assert.Equal(t, "tcp", result.Protocol)
}

func TestScanTargetDefaultPort(t *testing.T) {
	fake := &fakeRunner{output: ""}
	scanner := newTestScanner(fake)

	result := scanner.ScanTarget(context.Background(), "8.8.8.8", nil, "")
	assert.Equal(t, 80, result.Port)
}

func TestScanTargets(t *testing.T) {
	fake := &fakeRunner{output: sampleOutput}
	scanner := newTestScanner(fake)

	targets := []string{"8.8.8.8", "", "# comment", "1.1.1.1"}
	results := scanner.ScanTargets(context.Background(), targets, []int{80}, "")
	require.Len(t, results, 2)
	assert.Equal(t, "8.8.8.8", results[0].Target)
	assert.Equal(t, "1.1.1.1", results[1].Target)
}

func TestScanTargetsCanceledContext(t *testing.T) {
	fake := &fakeRunner{output: sampleOutput}
	scanner := newTestScanner(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := scanner.ScanTargets(ctx, []string{"8.8.8.8", "1.1.1.1"}, []int{80}, "")
	assert.Empty(t, results)
}

func TestReadTargetsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.txt")
	content := "8.8.8.8\n\n# dns servers\n1.1.1.1\n  example.com  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	targets, err := ReadTargetsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"8.8.8.8", "1.1.1.1", "example.com"}, targets)
}

func TestReadTargetsFileMissing(t *testing.T) {
	_, err := ReadTargetsFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileNotFound))
}

func TestCheckTool(t *testing.T) {
	scanner := newTestScanner(&fakeRunner{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	version, err := scanner.CheckTool(ctx)
	require.NoError(t, err)
	assert.Contains(t, version, "Nmap version")
}
