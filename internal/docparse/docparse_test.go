package docparse

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly sales grew. </w:t></w:r><w:r><w:t>Widgets led.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Gadgets</w:t></w:r><w:r><w:tab/><w:t>lagged.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDocx(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "report.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParse_DOCX(t *testing.T) {
	path := writeDocx(t, t.TempDir(), documentXML)

	text, err := New().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly sales grew. Widgets led.\nGadgets\tlagged.", text)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	testCases := []string{"notes.txt", "image.PNG", "archive", "sheet.xlsx"}
	for _, name := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := New().Parse(filepath.Join(t.TempDir(), name))
			assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)
		})
	}
}

func TestParse_DOCXWithoutBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("docProps/app.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = New().Parse(path)
	assert.Error(t, err)
}

func TestParse_MissingPDF(t *testing.T) {
	_, err := New().Parse(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedFormat))
}
