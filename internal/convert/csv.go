package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVConverter renders CSV files as labeled rows under per-batch headings,
// so wide tables still split into bounded chunks.
type CSVConverter struct{}

const csvBatchSize = 20

func (c *CSVConverter) Convert(r io.Reader, filename string) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	// First row is headers; cells are labeled with them below.
	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		return "Headers: " + strings.Join(headers, ", "), nil
	}

	var blocks []string
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		fmt.Fprintf(&text, "## Rows %d-%d\n\n", i+2, end+1)
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteString("\n")
		}
		blocks = append(blocks, strings.TrimRight(text.String(), "\n"))
	}

	return strings.Join(blocks, "\n\n"), nil
}
