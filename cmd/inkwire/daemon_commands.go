package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"inkwire/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the inkwire daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
				client, err = launchDaemon(ctx, 10*time.Second)
				if err != nil {
					return err
				}
			}
			defer client.Close()

			resp, err := client.Start()
			if err != nil {
				return err
			}
			if resp.Started {
				fmt.Fprintln(stdout, "Daemon started")
			} else if strings.TrimSpace(resp.Message) != "" {
				fmt.Fprintln(stdout, resp.Message)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the inkwire daemon pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			defer client.Close()

			resp, err := client.Stop()
			if err != nil {
				return err
			}
			if resp.Stopped {
				fmt.Fprintln(stdout, "Daemon stopped")
			} else {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				queue, err := client.Queue()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := colorizeOutput(stdout)

				sectionHeader(stdout, "Daemon", colorize)
				runningTone := toneYellow
				if status.Running {
					runningTone = toneGreen
				}
				statusLine(stdout, "Running", yesNo(status.Running), runningTone, colorize)
				statusLine(stdout, "PID", fmt.Sprintf("%d", status.PID), "", colorize)
				statusLine(stdout, "Shelf DB", status.ShelfDBPath, "", colorize)
				statusLine(stdout, "Lock file", status.LockFilePath, "", colorize)
				fmt.Fprintln(stdout)

				sectionHeader(stdout, "Services", colorize)
				serviceTable := renderTable(
					[]string{"Service", "State", "Last Run", "Running"},
					buildServiceRows(status.Services),
				)
				fmt.Fprintln(stdout, serviceTable)
				fmt.Fprintln(stdout)

				sectionHeader(stdout, "Tracked Books", colorize)
				rows := buildBookRows(queue.Books)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No books in progress")
					return nil
				}
				fmt.Fprintln(stdout, renderTable(bookHeaders(), rows, bookNumericColumns()...))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func buildServiceRows(services []ipc.ServiceStatus) [][]string {
	rows := make([][]string, 0, len(services))
	for _, svc := range services {
		lastRun := "never"
		if !svc.LastRun.IsZero() {
			lastRun = svc.LastRun.Local().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{svc.Name, svc.State, lastRun, yesNo(svc.Running)})
	}
	return rows
}

// launchDaemon spawns this executable's run command detached and waits for
// the socket to come up.
func launchDaemon(ctx *commandContext, timeout time.Duration) (*ipc.Client, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"run"}
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			args = append(args, "--config", path)
		}
	}
	proc := exec.Command(exe, args...)
	proc.Stdout = nil
	proc.Stderr = nil
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("launch daemon: %w", err)
	}
	if err := proc.Process.Release(); err != nil {
		return nil, fmt.Errorf("detach daemon process: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		client, err := ipc.Dial(ctx.socketPath())
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("daemon did not come up within %s: %w", timeout, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
