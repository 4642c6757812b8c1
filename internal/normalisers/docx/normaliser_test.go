package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// createTestDOCX creates a minimal DOCX file in memory.
func createTestDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types/>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}
	if coreXML != "" {
		core, err := w.Create("docProps/core.xml")
		require.NoError(t, err)
		_, err = core.Write([]byte(coreXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{MIMEType}, New().SupportedMIMETypes())
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	docXML := `<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>IN THE HIGH COURT</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Case </w:t></w:r><w:r><w:t>12/2021</w:t></w:r></w:p>
</w:body></w:document>`
	coreXML := `<cp:coreProperties xmlns:cp="urn:cp" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title> S v Moyo </dc:title></cp:coreProperties>`

	raw := &domain.RawDocument{URI: "/files/judgment.docx", MIMEType: MIMEType, Content: createTestDOCX(t, docXML, coreXML)}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "S v Moyo", result.Title)
	assert.Equal(t, "IN THE HIGH COURT\nCase 12/2021", result.Text)
}

func TestNormalise_PageBreaksAndTabs(t *testing.T) {
	docXML := `<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>one</w:t><w:tab/><w:t>two</w:t></w:r></w:p>
<w:p><w:r><w:br w:type="page"/><w:t>page two</w:t><w:br/><w:t>line</w:t></w:r></w:p>
</w:body></w:document>`

	raw := &domain.RawDocument{URI: "x.docx", Content: createTestDOCX(t, docXML, "")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "one\ttwo\n\fpage two\nline", result.Text)
}

func TestNormalise_TitleFallbackToFilename(t *testing.T) {
	docXML := `<w:document ` + wordNS + `><w:body><w:p><w:r><w:t>x</w:t></w:r></w:p></w:body></w:document>`
	raw := &domain.RawDocument{URI: "/gazettes/gazette_2021-04.docx", Content: createTestDOCX(t, docXML, "")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "gazette 2021 04", result.Title)
}

func TestNormalise_EmptyDocument(t *testing.T) {
	raw := &domain.RawDocument{URI: "empty.docx", Content: createTestDOCX(t, "", "")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestNormalise_Errors(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), &domain.RawDocument{Content: []byte("not a zip")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	bad := createTestDOCX(t, "<w:document><w:body>", "")
	_, err = New().Normalise(context.Background(), &domain.RawDocument{Content: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
