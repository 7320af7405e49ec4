// Package cmd provides the CLI commands for rpcgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/rpcgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rpcgate",
	Short: "rpcgate - JSON-RPC 2.0 over HTTP",
	Long: `rpcgate serves JSON-RPC 2.0 calls over plain HTTP POST.

It checks the Host header against a whitelist, answers CORS preflights,
negotiates the content type and dispatches single and batch requests to
registered methods.

Quick start:
  1. Run: rpcgate serve --dev
  2. Call: rpcgate call hello

Configuration:
  Config is loaded from rpcgate.yaml in the current directory,
  $HOME/.rpcgate/, or /etc/rpcgate/.

  Environment variables can override config values with the RPCGATE_ prefix.
  Example: RPCGATE_SERVER_BIND_ADDRESSES=127.0.0.1:9000

Commands:
  serve       Start the JSON-RPC server
  stop        Stop the running server
  call        Send a call to a server
  config      Print the effective configuration
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rpcgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
