// Command nmaptrace is the entry point for the nmap-based traceroute
// scanner. All behavior lives in the cli package; this file only wires
// build metadata in.
package main

import (
	"github.com/ValorVie/nmapTraceroute/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
