package traceroute

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ValorVie/nmapTraceroute/internal/logging"
)

// noResponseName is the hostname recorded for synthesized or unresponsive hops.
const noResponseName = "No response"

// lineKind classifies one candidate hop line. Keeping the cases named makes
// the edge-case policy auditable instead of burying it in nested matches.
type lineKind int

const (
	lineUnrecognized lineKind = iota
	lineTimeout
	lineRangeSkip
	lineData
)

// Parser converts raw nmap traceroute text into a structured, gap-filled
// hop sequence. Parsing never fails: malformed or truncated output
// degrades to a partial or empty result with warn-level logs.
type Parser struct {
	sectionRe  *regexp.Regexp
	hopLineRe  *regexp.Regexp
	ipRe       *regexp.Regexp
	rttRe      *regexp.Regexp
	hostnameRe *regexp.Regexp
}

// NewParser creates a parser with its patterns compiled once.
func NewParser() *Parser {
	return &Parser{
		// The traceroute section runs from its header to the next blank
		// line or the trailing "Nmap done" report.
		sectionRe:  regexp.MustCompile(`(?s)TRACEROUTE[^\n]*\n(.*?)(?:\n\n|\nNmap|\z)`),
		hopLineRe:  regexp.MustCompile(`^\s*(\d+)\s+(.+)$`),
		ipRe:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		rttRe:      regexp.MustCompile(`(\d+(?:\.\d+)?)\s*ms`),
		hostnameRe: regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}`),
	}
}

// Parse converts the full raw output of an nmap traceroute run into a
// ScanResult for the requested target, port, and protocol.
func (p *Parser) Parse(output, target string, port int, protocol string) *ScanResult {
	result := NewScanResult(target, port, protocol)

	var hops []Hop
	if m := p.sectionRe.FindStringSubmatch(output); m != nil {
		hops = p.parseHopLines(strings.Split(m[1], "\n"))
	} else {
		logging.WarnParser("no traceroute section found in output", "target", target)
		hops = p.parseFallback(output)
	}

	result.SetHops(fillGaps(hops))
	logging.Debug("parsed traceroute output",
		"target", target, "hops", result.TotalHops, "reached", result.TargetReached)
	return result
}

// parseHopLines parses the lines of a located traceroute section.
func (p *Parser) parseHopLines(lines []string) []Hop {
	var hops []Hop
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "TRACEROUTE") {
			continue
		}
		if hop, ok := p.parseHopLine(line); ok {
			hops = append(hops, hop)
		}
	}
	return hops
}

// parseFallback scans the whole output line by line when the section
// pattern did not match. It enters hop mode at a header containing a
// traceroute marker and leaves at a blank line or the report trailer.
func (p *Parser) parseFallback(output string) []Hop {
	var hops []Hop
	inSection := false

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)

		upper := strings.ToUpper(line)
		if strings.Contains(upper, "TRACEROUTE") || strings.Contains(upper, "HOP RTT") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Nmap") {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if hop, ok := p.parseHopLine(line); ok {
			hops = append(hops, hop)
		}
	}
	return hops
}

// classify names the shape of the text following the hop number.
func classify(rest string) lineKind {
	if rest == "*" || strings.Contains(strings.ToLower(rest), "timeout") {
		return lineTimeout
	}
	if strings.HasPrefix(rest, "...") {
		return lineRangeSkip
	}
	return lineData
}

// parseHopLine parses a single candidate line. Lines that do not match the
// "<number> <rest>" shape are skipped, not treated as errors.
func (p *Parser) parseHopLine(line string) (Hop, bool) {
	m := p.hopLineRe.FindStringSubmatch(line)
	if m == nil {
		return Hop{}, false
	}

	number, err := strconv.Atoi(m[1])
	if err != nil || number < 1 {
		logging.WarnParser("discarding hop line with bad number", "line", line)
		return Hop{}, false
	}
	rest := strings.TrimSpace(m[2])

	switch classify(rest) {
	case lineTimeout:
		return Hop{
			Number: number,
			IP:     NoResponseIP,
			Status: StatusTimeout,
		}, true

	case lineRangeSkip:
		// nmap shorthand "... 5" meaning hops N through 5 did not respond.
		hostname := noResponseName
		if end, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(rest, "..."))); err == nil {
			hostname = noResponseName + " (hops " + strconv.Itoa(number) + "-" + strconv.Itoa(end) + ")"
		}
		return Hop{
			Number:   number,
			IP:       NoResponseIP,
			Hostname: hostname,
			Status:   StatusTimeout,
		}, true

	default:
		return p.parseDataLine(number, rest), true
	}
}

// parseDataLine extracts IP, RTT, and hostname from a responding hop line.
// A line with no IPv4 substring degrades to an unresponsive hop.
func (p *Parser) parseDataLine(number int, rest string) Hop {
	ip := p.ipRe.FindString(rest)
	if ip == "" {
		logging.WarnParser("hop line without IP address, marking unresponsive",
			"hop", number, "line", rest)
		return Hop{
			Number:   number,
			IP:       NoResponseIP,
			Hostname: noResponseName,
			Status:   StatusTimeout,
		}
	}

	var rtt *float64
	if m := p.rttRe.FindStringSubmatch(rest); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rtt = &v
		}
	}

	// Strip the IP and RTT substrings before looking for a hostname so a
	// dotted address does not masquerade as a domain.
	cleaned := p.ipRe.ReplaceAllString(rest, "")
	cleaned = p.rttRe.ReplaceAllString(cleaned, "")
	cleaned = strings.Trim(cleaned, " ()")
	hostname := p.hostnameRe.FindString(cleaned)

	status := StatusUnknown
	if rtt != nil {
		status = StatusSuccess
	}

	return Hop{
		Number:   number,
		IP:       ip,
		Hostname: hostname,
		RTT:      rtt,
		Status:   status,
	}
}

// fillGaps builds the final contiguous hop sequence covering 1..max,
// synthesizing timeout hops for numbers missing from the raw output.
// Duplicate numbers keep the first occurrence.
func fillGaps(hops []Hop) []Hop {
	if len(hops) == 0 {
		return nil
	}

	byNumber := make(map[int]Hop, len(hops))
	maxHop := 0
	for _, hop := range hops {
		if _, exists := byNumber[hop.Number]; !exists {
			byNumber[hop.Number] = hop
		}
		if hop.Number > maxHop {
			maxHop = hop.Number
		}
	}

	filled := make([]Hop, 0, maxHop)
	for i := 1; i <= maxHop; i++ {
		if hop, ok := byNumber[i]; ok {
			filled = append(filled, hop)
			continue
		}
		filled = append(filled, Hop{
			Number:   i,
			IP:       NoResponseIP,
			Hostname: noResponseName,
			Status:   StatusTimeout,
		})
	}
	return filled
}
