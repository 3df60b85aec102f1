package extract

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// cellKind classifies a spreadsheet cell before normalization.
type cellKind int

const (
	cellEmpty cellKind = iota
	cellText
	cellNumber
	cellDate
)

// sheetCell is a decoded spreadsheet cell.
type sheetCell struct {
	kind cellKind
	text string
	num  float64
	date time.Time
}

func (c sheetCell) empty() bool {
	return c.kind == cellEmpty
}

// timestampLayout matches how dates render when a workbook is read into
// a data frame and stringified.
const timestampLayout = "2006-01-02 15:04:05"

// String normalizes the cell to its record value.
func (c sheetCell) String() string {
	switch c.kind {
	case cellNumber:
		return formatNumber(c.num)
	case cellDate:
		return c.date.Format(timestampLayout)
	case cellText:
		return strings.TrimSpace(c.text)
	default:
		return ""
	}
}

// formatNumber renders integral values without a fractional part and
// everything else as the shortest decimal that round-trips.
func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// pruneGrid drops rows and columns that contain no values at all. Rows
// and columns are each judged against the full grid.
func pruneGrid(grid [][]sheetCell) [][]sheetCell {
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	keepCol := make([]bool, width)
	var keepRows [][]sheetCell
	for _, row := range grid {
		used := false
		for j, c := range row {
			if !c.empty() {
				used = true
				keepCol[j] = true
			}
		}
		if used {
			keepRows = append(keepRows, row)
		}
	}

	out := make([][]sheetCell, len(keepRows))
	for i, row := range keepRows {
		pruned := make([]sheetCell, 0, width)
		for j := 0; j < width; j++ {
			if !keepCol[j] {
				continue
			}
			if j < len(row) {
				pruned = append(pruned, row[j])
			} else {
				pruned = append(pruned, sheetCell{})
			}
		}
		out[i] = pruned
	}
	return out
}

// gridRecords converts a pruned grid into records. The first row is the
// header; every remaining row yields one record holding a value for each
// non-blank header.
func gridRecords(grid [][]sheetCell) []*Record {
	grid = pruneGrid(grid)
	if len(grid) == 0 {
		return nil
	}

	headers := make([]string, len(grid[0]))
	for j, c := range grid[0] {
		headers[j] = c.String()
	}

	var records []*Record
	for _, row := range grid[1:] {
		rec := NewRecord(len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			var value string
			if j < len(row) {
				value = row[j].String()
			}
			rec.Set(h, value)
		}
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// rawTable is a document table as rows of cell text, before headers are
// applied.
type rawTable [][]string

// headers returns the trimmed first row.
func (t rawTable) headers() []string {
	if len(t) == 0 {
		return nil
	}
	out := make([]string, len(t[0]))
	for i, h := range t[0] {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// records pairs every data row with the header row. Tables whose header
// row is entirely blank yield nothing, even when later rows carry text.
func (t rawTable) records() []*Record {
	headers := t.headers()
	if allBlank(headers) {
		return nil
	}

	var records []*Record
	for _, row := range t[1:] {
		if allBlank(row) {
			continue
		}
		n := min(len(headers), len(row))
		rec := NewRecord(n)
		for i := 0; i < n; i++ {
			if headers[i] == "" {
				continue
			}
			rec.Set(headers[i], strings.TrimSpace(row[i]))
		}
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	return records
}

func allBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
