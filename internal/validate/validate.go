// Package validate provides input validation for scan targets, ports,
// protocols, and the configuration values that reach the scanning core.
// All checks happen before any scan starts; violations surface as
// configuration-coded errors.
package validate

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ValorVie/nmapTraceroute/internal/errors"
)

const (
	// Port and hop bounds.
	MinPort    = 1
	MaxPort    = 65535
	MinMaxHops = 1
	MaxMaxHops = 255

	// Timeout bounds in seconds.
	MinTimeoutSec = 5
	MaxTimeoutSec = 300

	// Widest port range accepted in a single "a-b" expression.
	maxPortRangeSpan = 100

	maxDomainLength = 253

	outputDirPerm = 0750
)

var (
	v = validator.New()

	multiUnderscore = regexp.MustCompile(`_{2,}`)
)

// IsValidIP reports whether s is a syntactically valid IP address.
func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// IsValidDomain reports whether s looks like a resolvable domain name.
func IsValidDomain(s string) bool {
	if len(s) == 0 || len(s) > maxDomainLength {
		return false
	}
	return v.Var(s, "hostname_rfc1123") == nil
}

// IsValidTarget reports whether s is an acceptable scan target (IP or domain).
func IsValidTarget(s string) bool {
	return IsValidIP(s) || IsValidDomain(s)
}

// ValidateTarget returns a coded error when target is not scannable.
func ValidateTarget(target string) error {
	if !IsValidTarget(target) {
		return errors.ErrInvalidTarget(target)
	}
	return nil
}

// IsValidPort reports whether p is inside the valid TCP/UDP port range.
func IsValidPort(p int) bool {
	return p >= MinPort && p <= MaxPort
}

// IsValidProtocol reports whether s names a supported scan protocol.
func IsValidProtocol(s string) bool {
	switch strings.ToLower(s) {
	case "tcp", "udp":
		return true
	}
	return false
}

// ParsePortList parses a port specification such as "22,80-82,443" into a
// sorted, de-duplicated port slice. Single ports and inclusive ranges are
// accepted; anything outside 1-65535, a reversed range, or a range wider
// than 100 ports is rejected.
func ParsePortList(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, errors.NewConfigFieldError(errors.CodeValidation,
			"empty port specification", "ports", spec)
	}

	seen := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, errors.NewConfigFieldError(errors.CodeValidation,
					fmt.Sprintf("invalid port range %q", part), "ports", spec)
			}
			end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, errors.NewConfigFieldError(errors.CodeValidation,
					fmt.Sprintf("invalid port range %q", part), "ports", spec)
			}
			if !IsValidPort(start) || !IsValidPort(end) {
				return nil, errors.NewConfigFieldError(errors.CodeValidation,
					fmt.Sprintf("port range %q outside 1-65535", part), "ports", spec)
			}
			if start > end {
				return nil, errors.NewConfigFieldError(errors.CodeValidation,
					fmt.Sprintf("port range %q start exceeds end", part), "ports", spec)
			}
			if end-start > maxPortRangeSpan {
				return nil, errors.NewConfigFieldError(errors.CodeValidation,
					fmt.Sprintf("port range %q too wide (max %d ports)", part, maxPortRangeSpan),
					"ports", spec)
			}
			for p := start; p <= end; p++ {
				seen[p] = struct{}{}
			}
			continue
		}

		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("invalid port %q", part), "ports", spec)
		}
		if !IsValidPort(p) {
			return nil, errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("port %d outside 1-65535", p), "ports", spec)
		}
		seen[p] = struct{}{}
	}

	if len(seen) == 0 {
		return nil, errors.NewConfigFieldError(errors.CodeValidation,
			"no valid ports in specification", "ports", spec)
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

// ValidateTimeout checks a scan timeout in seconds against the allowed window.
func ValidateTimeout(seconds int) error {
	if seconds < MinTimeoutSec {
		return errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("timeout must be at least %d seconds", MinTimeoutSec),
			"timeout", seconds)
	}
	if seconds > MaxTimeoutSec {
		return errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("timeout must not exceed %d seconds", MaxTimeoutSec),
			"timeout", seconds)
	}
	return nil
}

// ValidateMaxHops checks a max-hops value against the TTL range.
func ValidateMaxHops(hops int) error {
	if hops < MinMaxHops || hops > MaxMaxHops {
		return errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("max hops must be between %d and %d", MinMaxHops, MaxMaxHops),
			"max_hops", hops)
	}
	return nil
}

// ValidateProtocol checks a protocol name, returning the lowercased form.
func ValidateProtocol(protocol string) (string, error) {
	p := strings.ToLower(protocol)
	if !IsValidProtocol(p) {
		return "", errors.NewConfigFieldError(errors.CodeValidation,
			"protocol must be tcp or udp", "protocol", protocol)
	}
	return p, nil
}

// ValidateTargetsFile verifies the targets file exists and is a regular file.
func ValidateTargetsFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewConfigFieldError(errors.CodeFileNotFound,
				"targets file does not exist", "targets_file", path)
		}
		return errors.WrapConfigError(errors.CodeFileNotFound,
			"cannot access targets file", err)
	}
	if info.IsDir() {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"targets path is a directory, not a file", "targets_file", path)
	}
	return nil
}

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, outputDirPerm); err != nil {
		if os.IsPermission(err) {
			return errors.WrapConfigError(errors.CodeFilePermission,
				"cannot create directory: permission denied", err)
		}
		return errors.WrapConfigError(errors.CodeDirectoryCreate,
			"cannot create directory", err)
	}
	return nil
}

// SanitizeFilename replaces characters that are unsafe in file names.
func SanitizeFilename(name string) string {
	const unsafe = `<>:"/\|?*`
	for _, c := range unsafe {
		name = strings.ReplaceAll(name, string(c), "_")
	}
	name = multiUnderscore.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "output"
	}
	return name
}

// Struct validates a tagged struct using the shared validator instance.
func Struct(s interface{}) error {
	return v.Struct(s)
}

// CleanPath normalizes a user-supplied path.
func CleanPath(path string) string {
	return filepath.Clean(path)
}
