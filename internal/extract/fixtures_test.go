package extract

import (
	"archive/zip"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves rows to the first sheet of a new .xlsx file.
// nil entries leave the cell unset.
func writeWorkbook(t *testing.T, name string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, axis, v))
		}
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// docTable describes a table for writeDocument. Each cell is plain text;
// newlines split it into paragraphs.
type docTable [][]string

// writeDocument builds a minimal .docx containing the given tables, each
// preceded by a paragraph.
func writeDocument(t *testing.T, name string, tables ...docTable) string {
	t.Helper()

	var body strings.Builder
	for _, tbl := range tables {
		body.WriteString(`<w:p><w:r><w:t>Section</w:t></w:r></w:p>`)
		body.WriteString(`<w:tbl><w:tblPr/>`)
		for _, row := range tbl {
			body.WriteString(`<w:tr>`)
			for _, cell := range row {
				body.WriteString(`<w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/></w:tcPr>`)
				for _, para := range strings.Split(cell, "\n") {
					body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
					xml.EscapeText(&body, []byte(para))
					body.WriteString(`</w:t></w:r></w:p>`)
				}
				body.WriteString(`</w:tc>`)
			}
			body.WriteString(`</w:tr>`)
		}
		body.WriteString(`</w:tbl>`)
	}

	return writeDocumentXML(t, name, body.String())
}

// writeDocumentXML wraps raw body markup in a document part and packages it.
func writeDocumentXML(t *testing.T, name, body string) string {
	t.Helper()

	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `<w:sectPr/></w:body></w:document>`

	return writeZip(t, name, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		documentPart:          doc,
	})
}

// writeZip packages the given parts into a zip archive.
func writeZip(t *testing.T, name string, parts map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	zw := zip.NewWriter(out)
	for partName, content := range parts {
		w, err := zw.Create(partName)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

// writeFile writes arbitrary bytes, for corrupt-input cases.
func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
