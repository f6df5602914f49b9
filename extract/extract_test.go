package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> report</w:t></w:r></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
    <w:p><w:r><w:t>Revenue</w:t><w:tab/><w:t>up</w:t></w:r></w:p>
    <w:p/>
  </w:body>
</w:document>`

func slideXML(shapes ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree>`)
	for _, s := range shapes {
		b.WriteString(s)
	}
	b.WriteString(`</p:spTree></p:cSld></p:sld>`)
	return b.String()
}

const titleShape = `<p:sp><p:txBody><a:bodyPr/><a:p><a:r><a:rPr lang="en-US"/><a:t>Roadmap</a:t></a:r></a:p></p:txBody></p:sp>`
const bulletsShape = `<p:sp><p:txBody><a:p><a:r><a:t>Ship v1</a:t></a:r></a:p><a:p><a:r><a:t>Hire</a:t></a:r><a:br/><a:r><a:t>two</a:t></a:r></a:p></p:txBody></p:sp>`
const emptyShape = `<p:sp><p:nvSpPr/></p:sp>`

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	e := New(zaptest.NewLogger(t))

	txt := filepath.Join(dir, "notes.TXT")
	require.NoError(t, os.WriteFile(txt, []byte("plain notes"), 0o644))

	docx := filepath.Join(dir, "report.docx")
	writeZip(t, docx, map[string]string{"word/document.xml": docxBody})

	pptx := filepath.Join(dir, "deck.pptx")
	writeZip(t, pptx, map[string]string{
		"ppt/slides/slide10.xml": slideXML(emptyShape),
		"ppt/slides/slide2.xml":  slideXML(bulletsShape),
		"ppt/slides/slide1.xml":  slideXML(titleShape),
		"ppt/slides/_rels/slide1.xml.rels": "<Relationships/>",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"txt any case", txt, "plain notes"},
		{"docx paragraphs", docx, "Quarterly report\nRevenue\tup\n"},
		{"pptx shapes in slide order", pptx, "Roadmap\nShip v1\nHire\vtwo\n\n"},
		{"unsupported", filepath.Join(dir, "sheet.xlsx"), "Unsupported file format."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.path))
		})
	}
}

func TestExtractFailuresAreInline(t *testing.T) {
	dir := t.TempDir()
	e := New(nil)

	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("not a pdf"), 0o644))

	notZip := filepath.Join(dir, "fake.docx")
	require.NoError(t, os.WriteFile(notZip, []byte("nope"), 0o644))

	noBody := filepath.Join(dir, "empty.docx")
	writeZip(t, noBody, map[string]string{"other.xml": "<x/>"})

	for _, path := range []string{broken, notZip, noBody, filepath.Join(dir, "missing.txt")} {
		got := e.Extract(path)
		assert.True(t, strings.HasPrefix(got, "Error reading file: "), "%s: %q", path, got)
	}
}
