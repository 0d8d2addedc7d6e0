package commands

import (
	"os"
	"time"

	"chatexport/lib/serviceutil"
	"chatexport/services/export/archive"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var archiveDb *string

func init() {
	archiveDb = archiveCmd.Flags().String("db", "archive.db", "The archive database to inspect.")
	rootCmd.AddCommand(archiveCmd)
}

var archiveCmd = &cobra.Command{
	Use:   "archive [--db <path/to/archive.db>]",
	Short: "Lists the raw payloads a previous export run archived.",
	Run: func(cmd *cobra.Command, args []string) {
		arch, err := archive.Open(*archiveDb)
		if err != nil {
			serviceutil.Fatal("failed to open the archive db", err)
		}
		defer arch.Close()

		rows, err := arch.List(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list archived payloads", err)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"conversation", "fetched at", "bytes"})
		for _, row := range rows {
			t.AppendRow(table.Row{
				row.ConversationId,
				time.Unix(row.FetchedAt, 0).Format(time.RFC3339),
				len(row.Payload),
			})
		}
		t.Render()
	},
}
