package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValorVie/nmapTraceroute/internal/errors"
	"github.com/ValorVie/nmapTraceroute/internal/logging"
	"github.com/ValorVie/nmapTraceroute/internal/traceroute"
	"github.com/ValorVie/nmapTraceroute/internal/validate"
)

// Chart geometry shared by all SVG charts.
const (
	chartWidth   = 760
	chartHeight  = 260
	chartPadLeft = 50
	chartPadTop  = 20
	chartPadBot  = 30
)

// HTMLWriter renders scan results and monitoring sessions as
// self-contained HTML documents with inline SVG charts.
type HTMLWriter struct {
	outputDir string
}

// NewHTMLWriter creates a writer rooted at dir, creating it if needed.
func NewHTMLWriter(dir string) (*HTMLWriter, error) {
	if err := validate.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &HTMLWriter{outputDir: dir}, nil
}

// OutputDir returns the directory files are written under.
func (w *HTMLWriter) OutputDir() string {
	return w.outputDir
}

// hopRow is one row of the hop table in a rendered document.
type hopRow struct {
	Number   int
	IP       string
	Hostname string
	RTT      string
	Status   string
	CSSClass string
}

// chartBar is one bar of the per-hop RTT chart.
type chartBar struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Label  string
	Value  string
}

// trendPoint is one sample of the session RTT trend chart.
type trendPoint struct {
	X       float64
	Y       float64
	OK      bool
	Tooltip string
}

// axisTick is a labeled y-axis gridline.
type axisTick struct {
	Y     float64
	Label string
}

// resultPage is the data model for a single-result document.
type resultPage struct {
	Title         string
	GeneratedAt   string
	Target        string
	Port          int
	Protocol      string
	ScanTime      string
	Duration      string
	TargetReached bool
	TotalHops     int
	Successful    int
	Timeouts      int
	AvgRTT        string
	Hops          []hopRow
	Bars          []chartBar
	Ticks         []axisTick
	ChartWidth    int
	ChartHeight   int
}

// sessionPage is the data model for a monitoring-session document.
type sessionPage struct {
	Title       string
	GeneratedAt string
	Summary     SessionSummary
	Points      []trendPoint
	Polyline    string
	Ticks       []axisTick
	ChartWidth  int
	ChartHeight int
	Results     []sessionRow
}

// sessionRow is one history entry in the session document.
type sessionRow struct {
	ScanTime string
	Hops     int
	Reached  bool
	AvgRTT   string
	Duration string
}

var resultTmpl = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: "Segoe UI", Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
th { background: #f0f3f6; }
.ok { color: #1a7f37; }
.fail { color: #c0392b; }
.meta td:first-child { font-weight: bold; background: #f8f9fa; }
.footer { color: #888; font-size: 0.8em; margin-top: 2em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table class="meta">
<tr><td>Target</td><td>{{.Target}}:{{.Port}} ({{.Protocol}})</td></tr>
<tr><td>Scan time</td><td>{{.ScanTime}}</td></tr>
<tr><td>Duration</td><td>{{.Duration}}</td></tr>
<tr><td>Target reached</td><td>{{if .TargetReached}}<span class="ok">Yes</span>{{else}}<span class="fail">No</span>{{end}}</td></tr>
<tr><td>Hops</td><td>{{.TotalHops}} total, {{.Successful}} responded, {{.Timeouts}} timed out</td></tr>
{{if .AvgRTT}}<tr><td>Average RTT</td><td>{{.AvgRTT}}</td></tr>{{end}}
</table>

{{if .Bars}}
<h2>RTT by hop</h2>
<svg width="{{.ChartWidth}}" height="{{.ChartHeight}}" xmlns="http://www.w3.org/2000/svg">
<rect width="{{.ChartWidth}}" height="{{.ChartHeight}}" fill="#fbfcfd" stroke="#ddd"/>
{{range .Ticks}}<line x1="50" y1="{{.Y}}" x2="750" y2="{{.Y}}" stroke="#eee"/>
<text x="44" y="{{.Y}}" font-size="10" text-anchor="end" fill="#888">{{.Label}}</text>
{{end}}
{{range .Bars}}<rect x="{{.X}}" y="{{.Y}}" width="{{.Width}}" height="{{.Height}}" fill="#4c87c5"><title>{{.Value}}</title></rect>
<text x="{{.X}}" y="250" font-size="10" fill="#555">{{.Label}}</text>
{{end}}
</svg>
{{end}}

<h2>Hops</h2>
<table>
<tr><th>Hop</th><th>IP Address</th><th>Hostname</th><th>RTT (ms)</th><th>Status</th></tr>
{{range .Hops}}<tr><td>{{.Number}}</td><td>{{.IP}}</td><td>{{.Hostname}}</td><td>{{.RTT}}</td><td class="{{.CSSClass}}">{{.Status}}</td></tr>
{{end}}
</table>

<div class="footer">Generated by nmaptrace at {{.GeneratedAt}}</div>
</body>
</html>
`))

var sessionTmpl = template.Must(template.New("session").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: "Segoe UI", Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
th { background: #f0f3f6; }
.ok { color: #1a7f37; }
.fail { color: #c0392b; }
.meta td:first-child { font-weight: bold; background: #f8f9fa; }
.footer { color: #888; font-size: 0.8em; margin-top: 2em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table class="meta">
<tr><td>Target</td><td>{{.Summary.Target}}:{{.Summary.Port}} ({{.Summary.Protocol}})</td></tr>
<tr><td>Interval</td><td>{{.Summary.Interval}}</td></tr>
<tr><td>Scans</td><td>{{.Summary.TotalScans}} total, {{.Summary.SuccessfulScans}} successful, {{.Summary.FailedScans}} failed</td></tr>
<tr><td>Success rate</td><td>{{printf "%.1f" .Summary.SuccessRate}}%</td></tr>
{{if .Summary.HasRTT}}<tr><td>RTT</td><td>avg {{printf "%.1f" .Summary.AvgRTT}} ms, min {{printf "%.1f" .Summary.MinRTT}} ms, max {{printf "%.1f" .Summary.MaxRTT}} ms</td></tr>{{end}}
</table>

{{if .Points}}
<h2>RTT trend</h2>
<svg width="{{.ChartWidth}}" height="{{.ChartHeight}}" xmlns="http://www.w3.org/2000/svg">
<rect width="{{.ChartWidth}}" height="{{.ChartHeight}}" fill="#fbfcfd" stroke="#ddd"/>
{{range .Ticks}}<line x1="50" y1="{{.Y}}" x2="750" y2="{{.Y}}" stroke="#eee"/>
<text x="44" y="{{.Y}}" font-size="10" text-anchor="end" fill="#888">{{.Label}}</text>
{{end}}
{{if .Polyline}}<polyline points="{{.Polyline}}" fill="none" stroke="#4c87c5" stroke-width="2"/>{{end}}
{{range .Points}}<circle cx="{{.X}}" cy="{{.Y}}" r="3" fill="{{if .OK}}#1a7f37{{else}}#c0392b{{end}}"><title>{{.Tooltip}}</title></circle>
{{end}}
</svg>
{{end}}

<h2>History</h2>
<table>
<tr><th>Scan time</th><th>Hops</th><th>Reached</th><th>Avg RTT (ms)</th><th>Duration</th></tr>
{{range .Results}}<tr><td>{{.ScanTime}}</td><td>{{.Hops}}</td><td>{{if .Reached}}<span class="ok">Yes</span>{{else}}<span class="fail">No</span>{{end}}</td><td>{{.AvgRTT}}</td><td>{{.Duration}}</td></tr>
{{end}}
</table>

<div class="footer">Generated by nmaptrace at {{.GeneratedAt}}</div>
</body>
</html>
`))

// WriteResult renders one scan result as a self-contained HTML document
// and returns its path.
func (w *HTMLWriter) WriteResult(result *traceroute.ScanResult, filename string) (string, error) {
	if filename == "" {
		filename = resultFilename(result, "html")
	}
	filename = ensureExt(filename, "html")
	path := filepath.Join(w.outputDir, filename)

	stats := result.Statistics()
	page := resultPage{
		Title:         fmt.Sprintf("Traceroute to %s:%d", result.Target, result.Port),
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Target:        result.Target,
		Port:          result.Port,
		Protocol:      strings.ToUpper(result.Protocol),
		ScanTime:      result.ScanTime.Format("2006-01-02 15:04:05"),
		Duration:      fmt.Sprintf("%.2f s", result.Duration.Seconds()),
		TargetReached: stats.TargetReached,
		TotalHops:     stats.TotalHops,
		Successful:    stats.SuccessfulHops,
		Timeouts:      stats.TimeoutHops,
		ChartWidth:    chartWidth,
		ChartHeight:   chartHeight,
	}
	if stats.AvgRTT != nil {
		page.AvgRTT = fmt.Sprintf("%.3f ms", *stats.AvgRTT)
	}

	for i := range result.Hops {
		hop := &result.Hops[i]
		cls := "fail"
		if hop.Status == traceroute.StatusSuccess {
			cls = "ok"
		}
		page.Hops = append(page.Hops, hopRow{
			Number:   hop.Number,
			IP:       hop.IP,
			Hostname: hop.Hostname,
			RTT:      formatRTT(hop.RTT),
			Status:   string(hop.Status),
			CSSClass: cls,
		})
	}

	page.Bars, page.Ticks = hopBars(result.Hops)

	return w.render(path, resultTmpl, page)
}

// WriteSession renders a monitoring session history plus its summary as a
// self-contained HTML document with an RTT trend chart.
func (w *HTMLWriter) WriteSession(history []*traceroute.ScanResult, summary SessionSummary, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("monitor_%s_%d_%s.html",
			validate.SanitizeFilename(summary.Target), summary.Port,
			time.Now().Format(timestampLayout))
	}
	filename = ensureExt(filename, "html")
	path := filepath.Join(w.outputDir, filename)

	page := sessionPage{
		Title:       fmt.Sprintf("Monitoring session for %s:%d", summary.Target, summary.Port),
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Summary:     summary,
		ChartWidth:  chartWidth,
		ChartHeight: chartHeight,
	}
	page.Summary.Protocol = strings.ToUpper(page.Summary.Protocol)

	for _, result := range history {
		stats := result.Statistics()
		row := sessionRow{
			ScanTime: result.ScanTime.Format("15:04:05"),
			Hops:     stats.TotalHops,
			Reached:  stats.TargetReached,
			AvgRTT:   "-",
			Duration: fmt.Sprintf("%.2f s", result.Duration.Seconds()),
		}
		if stats.AvgRTT != nil {
			row.AvgRTT = fmt.Sprintf("%.3f", *stats.AvgRTT)
		}
		page.Results = append(page.Results, row)
	}

	page.Points, page.Polyline, page.Ticks = trendChart(history)

	return w.render(path, sessionTmpl, page)
}

// render executes tmpl into path.
func (w *HTMLWriter) render(path string, tmpl *template.Template, data any) (string, error) {
	file, err := os.Create(path)
	if err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to create HTML file", err)
	}
	defer file.Close()

	if err := tmpl.Execute(file, data); err != nil {
		return "", errors.WrapConfigError(errors.CodeFilePermission,
			"failed to render HTML file", err)
	}

	logging.Info("wrote HTML report", "path", path)
	return path, nil
}

// hopBars lays out the per-hop RTT bar chart. Hops without RTT data get
// no bar but keep their slot so hop numbers stay aligned.
func hopBars(hops []traceroute.Hop) ([]chartBar, []axisTick) {
	maxRTT := 0.0
	for i := range hops {
		if hops[i].RTT != nil && *hops[i].RTT > maxRTT {
			maxRTT = *hops[i].RTT
		}
	}
	if maxRTT == 0 || len(hops) == 0 {
		return nil, nil
	}

	plotW := float64(chartWidth - chartPadLeft - 10)
	plotH := float64(chartHeight - chartPadTop - chartPadBot)
	slot := plotW / float64(len(hops))
	barW := slot * 0.6

	var bars []chartBar
	for i := range hops {
		hop := &hops[i]
		x := float64(chartPadLeft) + slot*float64(i) + (slot-barW)/2
		bar := chartBar{
			X:     x,
			Width: barW,
			Label: fmt.Sprintf("%d", hop.Number),
		}
		if hop.RTT != nil {
			h := *hop.RTT / maxRTT * plotH
			bar.Y = float64(chartPadTop) + plotH - h
			bar.Height = h
			bar.Value = fmt.Sprintf("hop %d: %.3f ms", hop.Number, *hop.RTT)
		} else {
			bar.Y = float64(chartPadTop) + plotH
			bar.Height = 0
			bar.Value = fmt.Sprintf("hop %d: no response", hop.Number)
		}
		bars = append(bars, bar)
	}
	return bars, yTicks(maxRTT)
}

// trendChart lays out the session RTT trend. Failed scans are plotted on
// the baseline as failure markers and excluded from the polyline.
func trendChart(history []*traceroute.ScanResult) ([]trendPoint, string, []axisTick) {
	if len(history) == 0 {
		return nil, "", nil
	}

	maxRTT := 0.0
	for _, result := range history {
		stats := result.Statistics()
		if stats.AvgRTT != nil && *stats.AvgRTT > maxRTT {
			maxRTT = *stats.AvgRTT
		}
	}

	plotW := float64(chartWidth - chartPadLeft - 10)
	plotH := float64(chartHeight - chartPadTop - chartPadBot)
	step := plotW
	if len(history) > 1 {
		step = plotW / float64(len(history)-1)
	}

	var points []trendPoint
	var poly strings.Builder
	for i, result := range history {
		stats := result.Statistics()
		x := float64(chartPadLeft) + step*float64(i)
		p := trendPoint{X: x, OK: stats.TargetReached}

		if stats.TargetReached && stats.AvgRTT != nil && maxRTT > 0 {
			p.Y = float64(chartPadTop) + plotH - *stats.AvgRTT/maxRTT*plotH
			p.Tooltip = fmt.Sprintf("%s: %.3f ms",
				result.ScanTime.Format("15:04:05"), *stats.AvgRTT)
			if poly.Len() > 0 {
				poly.WriteByte(' ')
			}
			fmt.Fprintf(&poly, "%.1f,%.1f", p.X, p.Y)
		} else {
			p.Y = float64(chartPadTop) + plotH
			p.Tooltip = fmt.Sprintf("%s: unreachable",
				result.ScanTime.Format("15:04:05"))
		}
		points = append(points, p)
	}

	var ticks []axisTick
	if maxRTT > 0 {
		ticks = yTicks(maxRTT)
	}
	return points, poly.String(), ticks
}

// yTicks builds four evenly spaced y-axis labels for a 0..maxVal scale.
func yTicks(maxVal float64) []axisTick {
	plotH := float64(chartHeight - chartPadTop - chartPadBot)
	var ticks []axisTick
	for i := 0; i <= 4; i++ {
		frac := float64(i) / 4
		ticks = append(ticks, axisTick{
			Y:     float64(chartPadTop) + plotH - frac*plotH,
			Label: fmt.Sprintf("%.0f", maxVal*frac),
		})
	}
	return ticks
}
