package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	stopPollInterval = 200 * time.Millisecond
	stopWait         = 10 * time.Second
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running rpcgate server",
	Long: `Stop a running rpcgate server by reading its PID file and sending SIGTERM.

The PID file is located at ~/.rpcgate/server.pid.`,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := pidFilePath()

	pid := readPIDFile(pidPath)
	if pid == 0 {
		return fmt.Errorf("no server PID file found at %s\nIs the server running?", pidPath)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		_ = os.Remove(pidPath)
		return fmt.Errorf("invalid PID %d: %w", pid, err)
	}
	if !processIsAlive(proc) {
		_ = os.Remove(pidPath)
		return fmt.Errorf("server process %d is not running (stale PID file removed)", pid)
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Stopping rpcgate server (PID %d)...\n", pid)
	if err := sendGracefulStop(proc); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		time.Sleep(stopPollInterval)
		if !processIsAlive(proc) {
			_ = os.Remove(pidPath)
			fmt.Fprintln(stderr, "Server stopped.")
			return nil
		}
	}

	fmt.Fprintln(stderr, "Server did not stop gracefully, killing it...")
	_ = proc.Kill()
	_ = os.Remove(pidPath)
	fmt.Fprintln(stderr, "Server killed.")
	return nil
}
