package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"inkwire/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect chapter progress per book",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked books and their chapter stage counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Queue()
				if err != nil {
					return err
				}
				rows := buildBookRows(resp.Books)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books in progress")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(bookHeaders(), rows, bookNumericColumns()...))
				return nil
			})
		},
	}
}

func bookHeaders() []string {
	return []string{"Book", "Title", "Discovered", "Bought", "Queued", "Published"}
}

// bookNumericColumns names the book-table columns that hold counts or ids.
func bookNumericColumns() []int {
	return []int{1, 3, 4, 5, 6}
}

func buildBookRows(books []ipc.BookProgress) [][]string {
	rows := make([][]string, 0, len(books))
	for _, book := range books {
		rows = append(rows, []string{
			strconv.FormatInt(book.BookID, 10),
			book.Title,
			strconv.Itoa(book.Discovered),
			strconv.Itoa(book.Bought),
			strconv.Itoa(book.Queued),
			strconv.Itoa(book.Published),
		})
	}
	return rows
}
