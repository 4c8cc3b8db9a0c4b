package utils

import (
	"os"

	"github.com/olekukonko/tablewriter"
)

// RenderTable prints rows as an ASCII table on stdout.
func RenderTable(headers []string, data [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header(headers)
	table.Bulk(data)
	table.Render()
}
