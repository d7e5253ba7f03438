package traceroute

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ValorVie/nmapTraceroute/internal/errors"
	"github.com/ValorVie/nmapTraceroute/internal/logging"
)

const versionTimeout = 10 * time.Second

// fallbackPaths lists known nmap install locations checked when the
// binary is not on PATH, keyed by GOOS.
var fallbackPaths = map[string][]string{
	"linux": {
		"/usr/bin/nmap",
		"/usr/local/bin/nmap",
	},
	"darwin": {
		"/usr/local/bin/nmap",
		"/opt/homebrew/bin/nmap",
	},
	"windows": {
		`C:\Program Files (x86)\Nmap\nmap.exe`,
		`C:\Program Files\Nmap\nmap.exe`,
	},
}

// Output carries the raw results of one nmap invocation.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor locates and invokes the external nmap binary. Construction
// fails fast when the binary cannot be found.
type Executor struct {
	binPath string
	timeout time.Duration
}

// NewExecutor creates an executor, resolving the nmap binary immediately.
func NewExecutor(timeout time.Duration) (*Executor, error) {
	path, err := findBinary()
	if err != nil {
		return nil, err
	}
	logging.Debug("located nmap binary", "path", path)
	return &Executor{binPath: path, timeout: timeout}, nil
}

// findBinary searches PATH first, then the known install locations for
// the current platform.
func findBinary() (string, error) {
	if path, err := exec.LookPath("nmap"); err == nil {
		return path, nil
	}
	for _, path := range fallbackPaths[runtime.GOOS] {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.ErrToolNotFound()
}

// BinaryPath returns the resolved nmap binary location.
func (e *Executor) BinaryPath() string {
	return e.binPath
}

// BuildArgs constructs the nmap argument vector for a traceroute scan.
// Multiple ports are joined into one comma-separated -p argument; the
// protocol selects the scan-mode flag.
func (e *Executor) BuildArgs(target string, ports []int, protocol string, maxHops int, verbose bool) []string {
	portSpecs := make([]string, len(ports))
	for i, p := range ports {
		portSpecs[i] = strconv.Itoa(p)
	}

	args := []string{"-p", strings.Join(portSpecs, ",")}

	if strings.EqualFold(protocol, "udp") {
		args = append(args, "-sU")
	} else {
		args = append(args, "-sT")
	}

	args = append(args, "--traceroute")
	args = append(args, "--max-retries", "1")
	args = append(args, "--host-timeout", fmt.Sprintf("%ds", int(e.timeout.Seconds())))
	if maxHops > 0 {
		args = append(args, "--ttl", strconv.Itoa(maxHops))
	}
	if verbose {
		args = append(args, "-vv")
	}

	// Skip DNS resolution to keep scans fast and deterministic.
	args = append(args, "-n")
	args = append(args, target)

	return args
}

// Run executes nmap with the given arguments under the executor timeout.
// A non-zero exit code is not an error; the caller still receives stdout
// for best-effort parsing. Exceeding the timeout is surfaced as a
// TIMEOUT-coded error.
func (e *Executor) Run(ctx context.Context, args []string) (*Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmdline := e.binPath + " " + strings.Join(args, " ")
	logging.Debug("executing nmap", "command", cmdline)

	cmd := exec.CommandContext(runCtx, e.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errors.ErrExecTimeout(cmdline)
	}
	if ctx.Err() == context.Canceled {
		return nil, errors.WrapExecError(errors.CodeCanceled, "scan canceled", ctx.Err()).
			WithCommand(cmdline)
	}

	out := &Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			out.ExitCode = exitErr.ExitCode()
			logging.Warn("nmap exited non-zero",
				"exit_code", out.ExitCode, "stderr", out.Stderr)
			return out, nil
		}
		return nil, errors.WrapExecError(errors.CodeExecutionFailed,
			"failed to execute nmap", err).WithCommand(cmdline)
	}

	return out, nil
}

// Version runs "nmap --version" and returns the first line of its output.
func (e *Executor) Version(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binPath, "--version")
	out, err := cmd.Output()
	if err != nil {
		return "", errors.WrapExecError(errors.CodeExecutionFailed,
			"failed to query nmap version", err).WithCommand(e.binPath + " --version")
	}

	version := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(version, '\n'); idx >= 0 {
		version = version[:idx]
	}
	return version, nil
}
