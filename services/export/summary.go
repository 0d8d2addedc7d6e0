package export

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// PrintSummary renders the per-conversation overview and the closing count
// line to stdout.
func PrintSummary(doc Document, output string) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)

	t.AppendHeader(table.Row{"id", "title", "messages"})
	for _, conv := range doc.Conversations {
		t.AppendRow(table.Row{conv.Id, conv.Title, len(conv.Messages)})
	}
	t.Render()

	fmt.Printf("Saved %d conversations to %s\n", len(doc.Conversations), output)
}
