package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"inkwire/internal/ipc"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Request an immediate library check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Ping()
				if err != nil {
					return err
				}
				if resp.Accepted {
					fmt.Fprintln(cmd.OutOrStdout(), "Library check requested")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Ping not accepted")
				}
				return nil
			})
		},
	}
}

func newErrorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "errors",
		Short: "Drain and show recent pipeline errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Errors()
				if err != nil {
					return err
				}
				if len(resp.Reports) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No errors reported")
					return nil
				}
				rows := make([][]string, 0, len(resp.Reports))
				for _, report := range resp.Reports {
					rows = append(rows, []string{
						report.OccurredAt.Local().Format("2006-01-02 15:04:05"),
						report.Component,
						report.Message,
					})
				}
				table := renderTable([]string{"Time", "Component", "Message"}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newPastesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pastes",
		Short: "Drain and show recently published pastes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pastes()
				if err != nil {
					return err
				}
				if len(resp.Pastes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pastes published")
					return nil
				}
				rows := make([][]string, 0, len(resp.Pastes))
				for _, paste := range resp.Pastes {
					rows = append(rows, []string{
						strconv.FormatInt(paste.BookID, 10),
						formatIndexRange(paste.FirstIndex, paste.LastIndex),
						strconv.Itoa(paste.Chapters),
						paste.URL,
					})
				}
				table := renderTable([]string{"Book", "Chapters", "Count", "URL"}, rows, 1, 3)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func formatIndexRange(first, last int) string {
	if first == last {
		return strconv.Itoa(first)
	}
	return fmt.Sprintf("%d-%d", first, last)
}
