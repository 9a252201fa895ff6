package report

import (
	"fmt"
	"io"
)

// PrintTable writes rows as left aligned columns, the first row is normally the header.
func PrintTable(w io.Writer, table [][]string) {
	if len(table) == 0 {
		return
	}

	// Find the maximum width of each column
	var maxWidths []int
	for _, row := range table {
		for i, cell := range row {
			if i >= len(maxWidths) {
				maxWidths = append(maxWidths, 0)
			}
			if len(cell) > maxWidths[i] {
				maxWidths[i] = len(cell)
			}
		}
	}

	for _, row := range table {
		for i, cell := range row {
			if i == len(row)-1 {
				fmt.Fprint(w, cell)
			} else {
				fmt.Fprintf(w, "%-*s  ", maxWidths[i], cell)
			}
		}
		fmt.Fprintln(w)
	}
}
