package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fakePages(pages ...string) PageExtractor {
	return func(raw []byte) ([]string, error) { return pages, nil }
}

func TestNormalize_PDFJoinsPages(t *testing.T) {
	n := &Normalizer{ExtractPages: fakePages("A.", "B.")}
	text, err := n.Normalize(TypePDF, []byte("%PDF-1.4\n%fake"))
	require.NoError(t, err)
	assert.Equal(t, "A.\nB.", text)
	assert.Equal(t, "A. B.", CollapseNewlines(text))
}

func TestNormalize_PDFRejectsNonPDFContent(t *testing.T) {
	n := &Normalizer{ExtractPages: fakePages("never")}
	_, err := n.Normalize(TypePDF, []byte("just some text"))
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestNormalize_PDFExtractorError(t *testing.T) {
	n := &Normalizer{ExtractPages: func([]byte) ([]string, error) { return nil, errors.New("bad xref") }}
	_, err := n.Normalize(TypePDF, []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrUnparseable)
}

// buildPDF writes a minimal PDF with one line of Helvetica text per page.
func buildPDF(pages ...string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFPages_TwoPages(t *testing.T) {
	pages, err := ExtractPDFPages(buildPDF("A.", "B."))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "A.", strings.TrimSpace(pages[0]))
	assert.Equal(t, "B.", strings.TrimSpace(pages[1]))
}

func TestNormalize_RealPDF(t *testing.T) {
	text, err := NewNormalizer().Normalize(TypePDF, buildPDF("A.", "B."))
	require.NoError(t, err)
	assert.Equal(t, "A. B.", strings.TrimSpace(CollapseNewlines(text)))
}

func TestExtractPDFPages_Garbage(t *testing.T) {
	_, err := ExtractPDFPages([]byte("%PDF-1.4 not really"))
	assert.Error(t, err)
}

func TestNormalize_TXTUnmodified(t *testing.T) {
	text, err := NewNormalizer().Normalize(TypeTXT, []byte("line1\r\nline2"))
	require.NoError(t, err)
	assert.Equal(t, "line1\r\nline2", text)
}

func TestNormalize_CSV(t *testing.T) {
	raw := "name,age\nalice,30\n\nbob,41,extra\n"
	text, err := NewNormalizer().Normalize(TypeCSV, []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "name: alice\nage: 30\n\nname: bob\nage: 41\ncolumn3: extra", text)
}

func TestNormalize_CSVHeaderOnly(t *testing.T) {
	text, err := NewNormalizer().Normalize(TypeCSV, []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestNormalize_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "item"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "qty"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "apple"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 3))
	_, err := f.NewSheet("Second")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Second", "A1", "k"))
	require.NoError(t, f.SetCellValue("Second", "A2", "v"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, err := NewNormalizer().Normalize(TypeXLSX, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "item: apple\nqty: 3\n\nk: v", text)
}

func TestNormalize_XLSXRejectsNonZip(t *testing.T) {
	_, err := NewNormalizer().Normalize(TypeXLSX, []byte("a,b\n1,2\n"))
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestNormalize_Unsupported(t *testing.T) {
	_, err := NewNormalizer().Normalize("docx", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestCollapseNewlines(t *testing.T) {
	assert.Equal(t, "a b  c", CollapseNewlines("a\nb\r\nc"))
}
