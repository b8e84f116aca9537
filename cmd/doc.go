// Package cmd implements the command-line interface of netbus. It provides commands
// to drive a sharded websocket gateway from the shell and a local gateway to try them on.
//
// The package is organized into several subpackages:
//
//   - bus: Commands sending gateway commands (broadcast, publish, offline, ...) and reads (uniqids, topics, metrics, ...)
//   - listen: Registers push connections and prints the client events
//   - mock: Starts in-process gateway shards
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See netbus -help for a list of all commands.
package cmd
