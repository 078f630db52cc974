package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeRow(tw io.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON with --json, otherwise calls table with a tabwriter
// that is flushed afterwards.
func (e *env) emit(cmd *cobra.Command, v any, table func(tw io.Writer)) error {
	out := cmd.OutOrStdout()
	if e.jsonOut {
		return writeJSON(out, v)
	}
	tw := newTable(out)
	table(tw)
	return tw.Flush()
}

func pageFooter(w io.Writer, current, last, total int) {
	fmt.Fprintf(w, "\npage %d/%d, %d total\n", current, max(last, 1), total)
}
