package traceroute

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/ValorVie/nmapTraceroute/internal/errors"
	"github.com/ValorVie/nmapTraceroute/internal/logging"
	"github.com/ValorVie/nmapTraceroute/internal/metrics"
	"github.com/ValorVie/nmapTraceroute/internal/validate"
)

// runner abstracts the nmap invocation for testing.
type runner interface {
	BuildArgs(target string, ports []int, protocol string, maxHops int, verbose bool) []string
	Run(ctx context.Context, args []string) (*Output, error)
	Version(ctx context.Context) (string, error)
}

// Scanner combines the nmap executor and the output parser into single
// "scan a target" and "scan many targets" operations.
type Scanner struct {
	protocol string
	maxHops  int
	verbose  bool
	exec     runner
	parser   *Parser
	metrics  *metrics.Metrics
}

// NewScanner creates a scanner with the given defaults. Construction
// fails when the protocol is invalid or the nmap binary cannot be found.
func NewScanner(protocol string, maxHops int, timeout time.Duration, verbose bool) (*Scanner, error) {
	proto, err := validate.ValidateProtocol(protocol)
	if err != nil {
		return nil, err
	}
	if err := validate.ValidateMaxHops(maxHops); err != nil {
		return nil, err
	}

	executor, err := NewExecutor(timeout)
	if err != nil {
		return nil, err
	}

	logging.Info("scanner initialized",
		"protocol", proto, "max_hops", maxHops, "timeout", timeout)

	return &Scanner{
		protocol: proto,
		maxHops:  maxHops,
		verbose:  verbose,
		exec:     executor,
		parser:   NewParser(),
		metrics:  metrics.Global(),
	}, nil
}

// CheckTool verifies the external tool responds and returns its version line.
func (s *Scanner) CheckTool(ctx context.Context) (string, error) {
	return s.exec.Version(ctx)
}

// ScanTarget scans one target and never fails: executor or parser errors
// degrade to an empty result stamped with the scan duration, so batch
// operations need no per-target error handling.
func (s *Scanner) ScanTarget(ctx context.Context, target string, ports []int, protocol string) *ScanResult {
	proto := s.resolveProtocol(protocol)
	primaryPort := 80
	if len(ports) > 0 {
		primaryPort = ports[0]
	}

	start := time.Now()
	s.metrics.ScanStarted()
	defer s.metrics.ScanFinished()

	result, err := s.scanOnce(ctx, target, ports, proto, primaryPort)
	duration := time.Since(start)

	if err != nil {
		logging.ErrorScan("scan failed, returning empty result", target, err)
		s.metrics.IncrementScanErrors(proto, string(errors.GetCode(err)))
		s.metrics.IncrementScansTotal(proto, "error")
		result = NewScanResult(target, primaryPort, proto)
		result.Duration = duration
		return result
	}

	result.Duration = duration
	s.metrics.RecordScanDuration(proto, duration)
	s.metrics.IncrementScansTotal(proto, "success")

	stats := result.Statistics()
	s.metrics.AddHopsRecorded(string(StatusSuccess), stats.SuccessfulHops)
	s.metrics.AddHopsRecorded(string(StatusTimeout), stats.TimeoutHops)

	logging.InfoScan("scan completed", target,
		"duration", duration,
		"hops", result.TotalHops,
		"reached", result.TargetReached)
	return result
}

// scanOnce runs one scan end to end, surfacing errors to the caller.
// The swallow-and-continue policy lives in ScanTarget, not here, so
// diagnostics are not lost deep inside the pipeline.
func (s *Scanner) scanOnce(ctx context.Context, target string, ports []int, proto string, primaryPort int) (*ScanResult, error) {
	args := s.exec.BuildArgs(target, ports, proto, s.maxHops, s.verbose)

	out, err := s.exec.Run(ctx, args)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		// Partial output alongside a warning exit status is still parseable.
		logging.WarnScan("nmap returned non-zero exit code", target,
			"exit_code", out.ExitCode)
	}

	return s.parser.Parse(out.Stdout, target, primaryPort, proto), nil
}

// ScanTargets scans a list of targets sequentially. Individual scans
// degrade to empty results; an unexpected failure on one target skips it
// and continues with the rest.
func (s *Scanner) ScanTargets(ctx context.Context, targets []string, ports []int, protocol string) []*ScanResult {
	logging.Info("starting batch scan", "targets", len(targets))

	results := make([]*ScanResult, 0, len(targets))
	for i, target := range targets {
		target = strings.TrimSpace(target)
		if target == "" || strings.HasPrefix(target, "#") {
			continue
		}
		if ctx.Err() != nil {
			logging.Warn("batch scan canceled", "completed", len(results))
			break
		}

		logging.InfoScan("batch scan progress", target,
			"index", i+1, "total", len(targets))
		results = append(results, s.ScanTarget(ctx, target, ports, protocol))
	}

	logging.Info("batch scan completed", "results", len(results))
	return results
}

// ScanTargetsFile reads a newline-delimited targets file and scans each
// entry. Blank lines and lines beginning with '#' are skipped.
func (s *Scanner) ScanTargetsFile(ctx context.Context, path string, ports []int, protocol string) ([]*ScanResult, error) {
	targets, err := ReadTargetsFile(path)
	if err != nil {
		return nil, err
	}
	return s.ScanTargets(ctx, targets, ports, protocol), nil
}

// resolveProtocol applies the per-scan override over the instance default.
func (s *Scanner) resolveProtocol(override string) string {
	if override == "" {
		return s.protocol
	}
	if proto, err := validate.ValidateProtocol(override); err == nil {
		return proto
	}
	logging.Warn("ignoring invalid protocol override", "protocol", override)
	return s.protocol
}

// ReadTargetsFile parses a newline-delimited targets file, skipping blank
// lines and '#' comments.
func ReadTargetsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigFieldError(errors.CodeFileNotFound,
				"targets file does not exist", "targets_file", path)
		}
		return nil, errors.WrapConfigError(errors.CodeFileNotFound,
			"failed to open targets file", err)
	}
	defer file.Close()

	var targets []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapConfigError(errors.CodeFileNotFound,
			"failed to read targets file", err)
	}
	return targets, nil
}
