package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/rpcgate/pkg/rpcclient"
)

var (
	callURL     string
	callHost    string
	callOrigin  string
	callNotify  bool
	callTimeout time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Send a JSON-RPC call to a server",
	Long: `Send one JSON-RPC call and print the result as indented JSON.

Examples:
  rpcgate call hello
  rpcgate call echo '{"a":1}'
  rpcgate call --notify hello
  rpcgate call --url http://10.0.0.5:8545/ rpc.methods`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callURL, "url", "http://127.0.0.1:8545/", "server endpoint")
	callCmd.Flags().StringVar(&callHost, "host", "", "override the Host header")
	callCmd.Flags().StringVar(&callOrigin, "origin", "", "send an Origin header")
	callCmd.Flags().BoolVar(&callNotify, "notify", false, "send a notification and expect no result")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	var params any
	if len(args) == 2 {
		raw := json.RawMessage(args[1])
		if !json.Valid(raw) {
			return fmt.Errorf("params are not valid JSON: %s", args[1])
		}
		params = raw
	}

	opts := []rpcclient.Option{rpcclient.WithTimeout(callTimeout)}
	if callHost != "" {
		opts = append(opts, rpcclient.WithHost(callHost))
	}
	if callOrigin != "" {
		opts = append(opts, rpcclient.WithOrigin(callOrigin))
	}
	client := rpcclient.New(callURL, opts...)

	if callNotify {
		return client.Notify(cmd.Context(), args[0], params)
	}

	var result json.RawMessage
	if err := client.Call(cmd.Context(), args[0], params, &result); err != nil {
		return err
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	out.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(out.Bytes())
	return err
}
