package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var errNoSheets = errors.New("workbook has no sheets")

// readSpreadsheet loads the first sheet of an .xlsx workbook as a grid of
// typed cells.
func readSpreadsheet(path string) ([][]sheetCell, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheets
	}
	sheet := sheets[0]

	// Raw values keep number formats from rounding or re-shaping numerics.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	styles := newDateStyles(f)
	grid := make([][]sheetCell, len(rows))
	for r, row := range rows {
		cells := make([]sheetCell, len(row))
		for c, raw := range row {
			if raw == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cell, err := decodeCell(f, sheet, axis, raw, styles)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", axis, err)
			}
			cells[c] = cell
		}
		grid[r] = cells
	}
	return grid, nil
}

// decodeCell classifies a raw cell value using the workbook's cell type.
// Cells without an explicit type are numeric by default in OOXML.
func decodeCell(f *excelize.File, sheet, axis, raw string, styles *dateStyles) (sheetCell, error) {
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return sheetCell{}, err
	}

	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return sheetCell{kind: cellText, text: raw}, nil
		}
		if styles.isDate(sheet, axis) {
			if t, derr := excelize.ExcelDateToTime(v, styles.date1904); derr == nil {
				return sheetCell{kind: cellDate, date: t}, nil
			}
		}
		return sheetCell{kind: cellNumber, num: v}, nil
	default:
		return sheetCell{kind: cellText, text: raw}, nil
	}
}

// dateStyles memoizes which style IDs carry a date or time number format.
type dateStyles struct {
	f        *excelize.File
	date1904 bool
	cache    map[int]bool
}

func newDateStyles(f *excelize.File) *dateStyles {
	d := &dateStyles{f: f, cache: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateStyles) isDate(sheet, axis string) bool {
	id, err := d.f.GetCellStyle(sheet, axis)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := d.cache[id]; ok {
		return v
	}

	isDate := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		} else {
			isDate = isBuiltinDateFormat(style.NumFmt)
		}
	}
	d.cache[id] = isDate
	return isDate
}

func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormat reports whether a custom number format renders a date or
// time. Literal text, bracketed sections and escaped characters are
// ignored.
func isDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case inBracket:
			if ch == ']' {
				inBracket = false
			}
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ydhs")
}

// readLegacySpreadsheet loads the first sheet of a BIFF (.xls) workbook.
// Typed cells come from the raw records; the xls decoder fills in the
// strings.
func readLegacySpreadsheet(path string) (grid [][]sheetCell, err error) {
	defer func() {
		if r := recover(); r != nil {
			grid = nil
			err = fmt.Errorf("decode legacy workbook: %v", r)
		}
	}()

	typed, err := readBIFFSheet(path)
	if err != nil {
		return nil, fmt.Errorf("open legacy workbook: %w", err)
	}

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open legacy workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, errNoSheets
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errNoSheets
	}
	if len(typed.rows) == 0 {
		return nil, nil
	}

	grid = make([][]sheetCell, typed.maxRow+1)
	for r, info := range typed.rows {
		cells := make([]sheetCell, info.width)
		// Row panics on rows the decoder never saw.
		if info.indexed {
			row := sheet.Row(r)
			for c := range cells {
				if _, ok := info.cells[c]; ok {
					continue
				}
				if raw := row.Col(c); raw != "" {
					cells[c] = sheetCell{kind: cellText, text: raw}
				}
			}
		}
		for c, cell := range info.cells {
			cells[c] = cell
		}
		grid[r] = cells
	}
	return grid, nil
}
