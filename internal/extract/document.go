package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// documentPart is the main story of a WordprocessingML package.
const documentPart = "word/document.xml"

var errNoDocumentPart = errors.New(documentPart + " not found")

// readDocument returns every body-level table of a .docx file in document
// order. Tables nested inside cells or content controls are not visited.
func readDocument(path string) ([]rawTable, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", documentPart, err)
		}
		defer rc.Close()
		return decodeDocumentTables(rc)
	}
	return nil, errNoDocumentPart
}

// decodeDocumentTables parses document.xml and resolves merged cells.
func decodeDocumentTables(r io.Reader) ([]rawTable, error) {
	var doc wordDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", documentPart, err)
	}

	tables := make([]rawTable, len(doc.Body.Tables))
	for i, tbl := range doc.Body.Tables {
		tables[i] = tbl.grid()
	}
	return tables, nil
}

// WordprocessingML elements are matched by local name; the w: namespace
// is implied.

type wordDocument struct {
	Body struct {
		Tables []wordTable `xml:"tbl"`
	} `xml:"body"`
}

type wordTable struct {
	Rows []wordRow `xml:"tr"`
}

type wordRow struct {
	Cells []wordCell `xml:"tc"`
}

type wordCell struct {
	Props      wordCellProps   `xml:"tcPr"`
	Paragraphs []wordParagraph `xml:"p"`
}

type wordCellProps struct {
	GridSpan *wordValue `xml:"gridSpan"`
	VMerge   *wordValue `xml:"vMerge"`
}

type wordValue struct {
	Val string `xml:"val,attr"`
}

// span is the number of grid columns the cell occupies.
func (c wordCell) span() int {
	if c.Props.GridSpan == nil {
		return 1
	}
	n, err := strconv.Atoi(c.Props.GridSpan.Val)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// continuesMerge reports whether the cell continues a vertical merge
// started in a row above.
func (c wordCell) continuesMerge() bool {
	return c.Props.VMerge != nil && c.Props.VMerge.Val != "restart"
}

func (c wordCell) text() string {
	parts := make([]string, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		parts[i] = p.text
	}
	return strings.Join(parts, "\n")
}

// grid lays the table out on its column grid. A horizontally merged cell
// repeats its text for every column it spans; a vertically merged
// continuation cell takes the text of the cell above it.
func (t wordTable) grid() rawTable {
	out := make(rawTable, len(t.Rows))
	var prev []string
	for i, row := range t.Rows {
		var cells []string
		for _, c := range row.Cells {
			text := c.text()
			col := len(cells)
			if c.continuesMerge() {
				text = ""
				if col < len(prev) {
					text = prev[col]
				}
			}
			for n := c.span(); n > 0; n-- {
				cells = append(cells, text)
			}
		}
		out[i] = cells
		prev = cells
	}
	return out
}

// wordParagraph collects the visible text of a paragraph, including text
// inside hyperlinks, smart tags and tracked insertions.
type wordParagraph struct {
	text string
}

// skipInParagraph lists elements whose content is not paragraph text:
// property blocks, and embedded objects such as drawings and text boxes.
// AlternateContent carries the same object twice, once per rendering.
var skipInParagraph = map[string]bool{
	"pPr":              true,
	"rPr":              true,
	"drawing":          true,
	"pict":             true,
	"object":           true,
	"AlternateContent": true,
}

func (p *wordParagraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	inText := false
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if skipInParagraph[el.Name.Local] {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			depth++
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab", "ptab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			case "noBreakHyphen":
				b.WriteByte('-')
			}
		case xml.EndElement:
			depth--
			if el.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
	p.text = b.String()
	return nil
}
