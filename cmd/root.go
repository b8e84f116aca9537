package cmd

import (
	"fmt"
	"github.com/ValentinKolb/netbus/cmd/bus"
	"github.com/ValentinKolb/netbus/cmd/listen"
	"github.com/ValentinKolb/netbus/cmd/mock"
	"github.com/ValentinKolb/netbus/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "netbus",
		Short: "client for sharded websocket gateways",
		Long: fmt.Sprintf(`netbus (v%s)

A client for sharded websocket gateways written in Go. It sends commands
to the shards owning a client, fans out to all shards and merges their replies.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of netbus",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("netbus v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(bus.BusCommands)
	RootCmd.AddCommand(listen.ListenCmd)
	RootCmd.AddCommand(mock.MockCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "proto", util.WrapString("serializer of the payloads (proto, json)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport of the worker connections (tcp, unix)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
