// Package main provides the entry point for the ownersync CLI tool.
package main

import "github.com/agentstation/ownersync/cmd/ownersync/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
