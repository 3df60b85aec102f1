package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// biffBuilder writes BIFF8 records.
type biffBuilder struct {
	bytes.Buffer
}

func (b *biffBuilder) record(typ uint16, fields ...any) {
	var body bytes.Buffer
	for _, f := range fields {
		if err := binary.Write(&body, binary.LittleEndian, f); err != nil {
			panic(err)
		}
	}
	binary.Write(&b.Buffer, binary.LittleEndian, typ)
	binary.Write(&b.Buffer, binary.LittleEndian, uint16(body.Len()))
	b.Write(body.Bytes())
}

func (b *biffBuilder) bof(dt uint16) {
	b.record(recBOF, uint16(biff8Version), dt, uint16(0x0DBB), uint16(0x07CC), uint32(0), uint32(biff8Version))
}

func (b *biffBuilder) xf(format uint16) {
	b.record(recXF, uint16(0), format, make([]byte, 16))
}

// format writes a FORMAT record with a compressed 8-bit code.
func (b *biffBuilder) format(id uint16, code string) {
	b.record(recFormat, id, uint16(len(code)), uint8(0), []byte(code))
}

// wideFormat writes a FORMAT record with a UTF-16 code.
func (b *biffBuilder) wideFormat(id uint16, code string) {
	b.record(recFormat, id, uint16(len(code)), uint8(1), utf16.Encode([]rune(code)))
}

func (b *biffBuilder) number(row, col, xf uint16, v float64) {
	b.record(recNumber, row, col, xf, v)
}

func (b *biffBuilder) rk(row, col, xf uint16, rk uint32) {
	b.record(recRK, row, col, xf, rk)
}

// formula writes a FORMULA record with the given cached result and an
// empty token stream.
func (b *biffBuilder) formula(row, col, xf uint16, result [8]byte) {
	b.record(recFormula, row, col, xf, result, uint16(0), uint32(0), uint16(0))
}

func rkInt(n int32) uint32 {
	return uint32(n<<2) | 0x2
}

// biffStream wraps globals and sheet records into a workbook stream with
// a single worksheet.
func biffStream(globals func(*biffBuilder), sheet func(*biffBuilder)) []byte {
	var g biffBuilder
	g.bof(0x0005)
	globals(&g)
	bs := g.Len()
	g.record(recBoundSheet, uint32(0), uint8(0), uint8(0), uint8(5), uint8(0), []byte("Sheet"))
	g.record(recEOF)

	var s biffBuilder
	s.bof(0x0010)
	sheet(&s)
	s.record(recEOF)

	out := append(g.Bytes(), s.Bytes()...)
	binary.LittleEndian.PutUint32(out[bs+4:], uint32(g.Len()))
	return out
}

func cellStrings(row *biffRow) map[int]string {
	out := make(map[int]string, len(row.cells))
	for c, cell := range row.cells {
		out[c] = cell.String()
	}
	return out
}

func TestDecodeRK(t *testing.T) {
	tests := []struct {
		name string
		rk   uint32
		want float64
	}{
		{"integer", rkInt(42), 42},
		{"negative integer", rkInt(-3), -3},
		{"integer cents", rkInt(12345) | 0x1, 123.45},
		{"float", uint32(math.Float64bits(1.5) >> 32), 1.5},
		{"float cents", uint32(math.Float64bits(1.5)>>32) | 0x1, 0.015},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, decodeRK(tt.rk), 1e-12)
		})
	}
}

func TestParseBIFF_NumberFormats(t *testing.T) {
	stream := biffStream(func(g *biffBuilder) {
		g.record(recDateMode, uint16(0))
		g.format(164, "000000")
		g.wideFormat(165, "yyyy-mm-dd")
		g.xf(0)
		g.xf(164)
		g.xf(14)
		g.xf(165)
	}, func(s *biffBuilder) {
		s.rk(0, 0, 1, rkInt(42))
		s.number(0, 1, 2, 45580)
		s.number(0, 2, 3, 45580.25)
		s.rk(0, 3, 0, rkInt(7))
		s.number(0, 4, 9, 5)
		s.record(recMulRK, uint16(0), uint16(5), uint16(1), rkInt(8), uint16(2), rkInt(45581), uint16(6))
	})

	sheet, err := parseBIFF(stream)
	require.NoError(t, err)
	require.Contains(t, sheet.rows, 0)

	row := sheet.rows[0]
	assert.True(t, row.indexed)
	assert.Equal(t, 7, row.width)
	assert.Equal(t, map[int]string{
		0: "42",
		1: "2024-10-15 00:00:00",
		2: "2024-10-15 06:00:00",
		3: "7",
		4: "5",
		5: "8",
		6: "2024-10-16 00:00:00",
	}, cellStrings(row))
}

func TestParseBIFF_Date1904(t *testing.T) {
	stream := biffStream(func(g *biffBuilder) {
		g.record(recDateMode, uint16(1))
		g.xf(14)
	}, func(s *biffBuilder) {
		s.number(0, 0, 0, 100)
	})

	sheet, err := parseBIFF(stream)
	require.NoError(t, err)
	assert.Equal(t, "1904-04-10 00:00:00", sheet.rows[0].cells[0].String())
}

func TestParseBIFF_FormulaResults(t *testing.T) {
	var num [8]byte
	binary.LittleEndian.PutUint64(num[:], math.Float64bits(2.5))
	str := [8]byte{0, 0, 0, 0, 0, 0, 0xFF, 0xFF}
	boolean := [8]byte{1, 0, 1, 0, 0, 0, 0xFF, 0xFF}
	errValue := [8]byte{2, 0, 7, 0, 0, 0, 0xFF, 0xFF}

	stream := biffStream(func(g *biffBuilder) {
		g.xf(0)
	}, func(s *biffBuilder) {
		s.formula(0, 0, 0, num)
		s.formula(0, 1, 0, str)
		s.record(recString, uint16(6), uint8(0), []byte("Room 4"))
		s.formula(0, 2, 0, boolean)
		s.formula(0, 3, 0, errValue)
		s.record(recBoolErr, uint16(1), uint16(0), uint16(0), uint8(0), uint8(0))
	})

	sheet, err := parseBIFF(stream)
	require.NoError(t, err)

	assert.Equal(t, map[int]string{0: "2.5", 1: "Room 4", 2: "1", 3: ""}, cellStrings(sheet.rows[0]))
	assert.Equal(t, "0", sheet.rows[1].cells[0].String())
	// The xls decoder keeps no row for a lone BOOLERR cell.
	assert.False(t, sheet.rows[1].indexed)
}

func TestParseBIFF_TextCellsWidenRows(t *testing.T) {
	stream := biffStream(func(g *biffBuilder) {
		g.xf(0)
	}, func(s *biffBuilder) {
		s.record(recLabelSST, uint16(2), uint16(3), uint16(0), uint32(0))
		s.record(recMulBlank, uint16(4), uint16(1), uint16(0), uint16(0), uint16(0), uint16(3))
	})

	sheet, err := parseBIFF(stream)
	require.NoError(t, err)
	assert.Equal(t, 4, sheet.maxRow)
	assert.True(t, sheet.rows[2].indexed)
	assert.Equal(t, 4, sheet.rows[2].width)
	assert.Equal(t, 4, sheet.rows[4].width)
	assert.NotContains(t, sheet.rows, 3)
}

func TestParseBIFF_Malformed(t *testing.T) {
	t.Run("empty stream", func(t *testing.T) {
		_, err := parseBIFF(nil)
		assert.True(t, errors.Is(err, errBadBIFF), "err = %v", err)
	})

	t.Run("no sheets", func(t *testing.T) {
		var g biffBuilder
		g.bof(0x0005)
		g.record(recEOF)
		_, err := parseBIFF(g.Bytes())
		assert.True(t, errors.Is(err, errNoSheets), "err = %v", err)
	})

	t.Run("sheet offset past the stream", func(t *testing.T) {
		var g biffBuilder
		g.bof(0x0005)
		g.record(recBoundSheet, uint32(1<<20), uint8(0), uint8(0), uint8(1), uint8(0), []byte("S"))
		g.record(recEOF)
		_, err := parseBIFF(g.Bytes())
		assert.True(t, errors.Is(err, errNoSheets), "err = %v", err)
	})
}

func TestFormatCode_BIFF5(t *testing.T) {
	assert.Equal(t, "d/m/yy", formatCode(append([]byte{6}, "d/m/yy"...), true))
	assert.Equal(t, "0.00", formatCode([]byte{4, 0, 0, '0', '.', '0', '0'}, false))
}
