package extract

// biff.go decodes cell values straight from the BIFF records of a legacy
// .xls workbook. The xls decoder only hands out display strings, which
// run numbers through their number format, so numbers, booleans and
// formula results are read here from their raw records and typed with the
// number format of their XF record. Shared strings are still resolved by
// the xls decoder.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
)

// BIFF record types.
const (
	recFormula    = 0x0006
	recEOF        = 0x000A
	recDateMode   = 0x0022
	recBoundSheet = 0x0085
	recMulRK      = 0x00BD
	recMulBlank   = 0x00BE
	recXF         = 0x00E0
	recLabelSST   = 0x00FD
	recBlank      = 0x0201
	recNumber     = 0x0203
	recLabel      = 0x0204
	recBoolErr    = 0x0205
	recString     = 0x0207
	recRow        = 0x0208
	recRK         = 0x027E
	recFormat     = 0x041E
	recBOF        = 0x0809
)

const biff8Version = 0x0600

var (
	errNoWorkbookStream = errors.New("no Workbook stream")
	errBadBIFF          = errors.New("malformed BIFF stream")
)

// biffRecord is one record of a BIFF stream.
type biffRecord struct {
	typ  uint16
	data []byte
}

// biffReader walks the records of a BIFF stream.
type biffReader struct {
	buf []byte
	off int
}

func (r *biffReader) next() (biffRecord, bool) {
	if r.off+4 > len(r.buf) {
		return biffRecord{}, false
	}
	typ := binary.LittleEndian.Uint16(r.buf[r.off:])
	size := int(binary.LittleEndian.Uint16(r.buf[r.off+2:]))
	start := r.off + 4
	if start+size > len(r.buf) {
		return biffRecord{}, false
	}
	r.off = start + size
	return biffRecord{typ: typ, data: r.buf[start:r.off]}, true
}

// biffRow is one row of a BIFF sheet.
type biffRow struct {
	// indexed is set when the xls decoder also holds the row, so its
	// strings can be looked up.
	indexed bool
	width   int
	cells   map[int]sheetCell
}

// biffSheet holds the decoded cells of one worksheet, keyed by row.
type biffSheet struct {
	rows   map[int]*biffRow
	maxRow int
}

func (s *biffSheet) row(r int) *biffRow {
	row, ok := s.rows[r]
	if !ok {
		row = &biffRow{cells: make(map[int]sheetCell)}
		s.rows[r] = row
		s.maxRow = max(s.maxRow, r)
	}
	return row
}

// index marks the cells [0, width) of row r as known to the xls decoder.
func (s *biffSheet) index(r, width int) {
	row := s.row(r)
	row.indexed = true
	row.width = max(row.width, width)
}

func (s *biffSheet) set(r, c int, cell sheetCell) {
	row := s.row(r)
	row.width = max(row.width, c+1)
	row.cells[c] = cell
}

// biffGlobals is what the workbook globals say about number formats.
type biffGlobals struct {
	biff5     bool
	date1904  bool
	xfFormats []uint16
	formats   map[uint16]string
	sheetPos  int
}

// isDate reports whether XF record xf carries a date or time format.
// Format codes declared in the workbook win over the built-in table.
func (g *biffGlobals) isDate(xf uint16) bool {
	if int(xf) >= len(g.xfFormats) {
		return false
	}
	id := g.xfFormats[xf]
	if code, ok := g.formats[id]; ok {
		return isDateFormat(code)
	}
	return isBuiltinDateFormat(int(id))
}

// numberCell types a raw number by the format of its XF record.
func (g *biffGlobals) numberCell(v float64, xf uint16) sheetCell {
	if g.isDate(xf) {
		if t, err := excelize.ExcelDateToTime(v, g.date1904); err == nil {
			return sheetCell{kind: cellDate, date: t}
		}
	}
	return sheetCell{kind: cellNumber, num: v}
}

// readBIFFSheet opens the compound file at path and decodes the first
// worksheet of its workbook stream.
func readBIFFSheet(path string) (*biffSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return nil, fmt.Errorf("read compound file: %w", err)
	}

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "Workbook" && entry.Name != "Book" {
			continue
		}
		buf := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, buf); err != nil {
			return nil, fmt.Errorf("read %s stream: %w", entry.Name, err)
		}
		return parseBIFF(buf)
	}
	return nil, errNoWorkbookStream
}

// parseBIFF decodes the first worksheet of a BIFF5 or BIFF8 workbook
// stream.
func parseBIFF(stream []byte) (*biffSheet, error) {
	g, err := parseBIFFGlobals(stream)
	if err != nil {
		return nil, err
	}
	if g.sheetPos < 0 || g.sheetPos >= len(stream) {
		return nil, errNoSheets
	}

	sheet := &biffSheet{rows: make(map[int]*biffRow)}
	r := &biffReader{buf: stream, off: g.sheetPos}
	rec, ok := r.next()
	if !ok || rec.typ != recBOF {
		return nil, fmt.Errorf("%w: sheet does not start with BOF", errBadBIFF)
	}

	// A formula with a string result is followed by a STRING record.
	pendingRow, pendingCol := -1, -1
	for {
		rec, ok := r.next()
		if !ok || rec.typ == recEOF {
			break
		}
		d := rec.data
		switch rec.typ {
		case recRow:
			if len(d) >= 6 {
				sheet.index(int(u16(d, 0)), int(u16(d, 4)))
			}
		case recLabelSST, recLabel, recBlank:
			if len(d) >= 4 {
				sheet.index(int(u16(d, 0)), int(u16(d, 2))+1)
			}
		case recMulBlank:
			if len(d) >= 6 {
				sheet.index(int(u16(d, 0)), int(u16(d, len(d)-2))+1)
			}
		case recNumber:
			if len(d) >= 14 {
				row, col := int(u16(d, 0)), int(u16(d, 2))
				v := math.Float64frombits(binary.LittleEndian.Uint64(d[6:]))
				sheet.index(row, col+1)
				sheet.set(row, col, g.numberCell(v, u16(d, 4)))
			}
		case recRK:
			if len(d) >= 10 {
				row, col := int(u16(d, 0)), int(u16(d, 2))
				sheet.index(row, col+1)
				sheet.set(row, col, g.numberCell(decodeRK(binary.LittleEndian.Uint32(d[6:])), u16(d, 4)))
			}
		case recMulRK:
			if len(d) >= 12 {
				row, first := int(u16(d, 0)), int(u16(d, 2))
				n := (len(d) - 6) / 6
				sheet.index(row, first+n)
				for i := 0; i < n; i++ {
					p := 4 + i*6
					v := decodeRK(binary.LittleEndian.Uint32(d[p+2:]))
					sheet.set(row, first+i, g.numberCell(v, u16(d, p)))
				}
			}
		case recFormula:
			if len(d) >= 14 {
				row, col := int(u16(d, 0)), int(u16(d, 2))
				sheet.index(row, col+1)
				cell, str := formulaResult(g, d)
				sheet.set(row, col, cell)
				if str {
					pendingRow, pendingCol = row, col
				}
			}
		case recString:
			if pendingRow >= 0 {
				sheet.set(pendingRow, pendingCol, sheetCell{kind: cellText, text: biffString(d, g.biff5)})
				pendingRow, pendingCol = -1, -1
			}
		case recBoolErr:
			if len(d) >= 8 {
				row, col := int(u16(d, 0)), int(u16(d, 2))
				if d[7] == 0 {
					sheet.set(row, col, boolCell(d[6] != 0))
				} else {
					sheet.set(row, col, sheetCell{})
				}
			}
		}
	}
	return sheet, nil
}

// parseBIFFGlobals reads the workbook globals substream up to its EOF.
func parseBIFFGlobals(stream []byte) (*biffGlobals, error) {
	g := &biffGlobals{formats: make(map[uint16]string), sheetPos: -1}
	r := &biffReader{buf: stream}

	rec, ok := r.next()
	if !ok || rec.typ != recBOF || len(rec.data) < 2 {
		return nil, fmt.Errorf("%w: missing BOF", errBadBIFF)
	}
	g.biff5 = u16(rec.data, 0) != biff8Version

	for {
		rec, ok := r.next()
		if !ok || rec.typ == recEOF {
			break
		}
		d := rec.data
		switch rec.typ {
		case recDateMode:
			if len(d) >= 2 {
				g.date1904 = u16(d, 0) == 1
			}
		case recXF:
			if len(d) >= 4 {
				g.xfFormats = append(g.xfFormats, u16(d, 2))
			}
		case recFormat:
			if len(d) >= 3 {
				g.formats[u16(d, 0)] = formatCode(d[2:], g.biff5)
			}
		case recBoundSheet:
			if g.sheetPos < 0 && len(d) >= 4 {
				g.sheetPos = int(binary.LittleEndian.Uint32(d))
			}
		}
	}
	return g, nil
}

// decodeRK expands an RK value: a 30-bit integer or the top 30 bits of a
// double, optionally scaled by 100.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x2 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&^0x3) << 32)
	}
	if rk&0x1 != 0 {
		v /= 100
	}
	return v
}

// formulaResult decodes the cached result of a FORMULA record. str is set
// when the result is a string held in the following STRING record.
func formulaResult(g *biffGlobals, d []byte) (cell sheetCell, str bool) {
	res := d[6:14]
	if u16(res, 6) != 0xFFFF {
		return g.numberCell(math.Float64frombits(binary.LittleEndian.Uint64(res)), u16(d, 4)), false
	}
	switch res[0] {
	case 0:
		return sheetCell{}, true
	case 1:
		return boolCell(res[2] != 0), false
	default:
		// Errors and empty strings.
		return sheetCell{}, false
	}
}

// boolCell renders booleans the way raw .xlsx boolean cells read.
func boolCell(b bool) sheetCell {
	if b {
		return sheetCell{kind: cellText, text: "1"}
	}
	return sheetCell{kind: cellText, text: "0"}
}

// formatCode reads the code of a FORMAT record body that follows the
// format index.
func formatCode(d []byte, biff5 bool) string {
	if biff5 {
		n := int(d[0])
		return latin1(d[1:min(1+n, len(d))])
	}
	return biffString(d, false)
}

// biffString reads a string with a 16-bit character count. BIFF8 strings
// carry an option byte selecting 8-bit or UTF-16LE characters.
func biffString(d []byte, biff5 bool) string {
	if len(d) < 2 {
		return ""
	}
	n := int(u16(d, 0))
	if biff5 {
		return latin1(d[2:min(2+n, len(d))])
	}
	if len(d) < 3 {
		return ""
	}
	flags := d[2]
	p := 3
	if flags&0x8 != 0 {
		p += 2
	}
	if flags&0x4 != 0 {
		p += 4
	}
	if p > len(d) {
		return ""
	}
	if flags&0x1 == 0 {
		return latin1(d[p:min(p+n, len(d))])
	}
	units := make([]uint16, 0, n)
	for i := 0; i < n && p+1 < len(d); i++ {
		units = append(units, u16(d, p))
		p += 2
	}
	return string(utf16.Decode(units))
}

func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func u16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}
