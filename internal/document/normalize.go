package document

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZIP  = "application/zip"
)

// PageExtractor returns the text of every page of a PDF, in page order.
type PageExtractor func(raw []byte) ([]string, error)

// Normalizer converts raw document bytes into plain text.
type Normalizer struct {
	ExtractPages PageExtractor
}

func NewNormalizer() *Normalizer {
	return &Normalizer{ExtractPages: ExtractPDFPages}
}

// Normalize returns the document text for docType. Errors wrap
// ErrUnsupportedType or ErrUnparseable.
func (n *Normalizer) Normalize(docType string, raw []byte) (string, error) {
	switch docType {
	case TypePDF:
		if !sniff(raw, mimePDF) {
			return "", fmt.Errorf("%w: content is %s, not pdf", ErrUnparseable, mimetype.Detect(raw).String())
		}
		extract := n.ExtractPages
		if extract == nil {
			extract = ExtractPDFPages
		}
		pages, err := extract(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return strings.Join(pages, "\n"), nil
	case TypeTXT:
		return string(raw), nil
	case TypeCSV:
		rows, err := readCSV(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return TabularText(rows), nil
	case TypeXLSX:
		if !sniff(raw, mimeXLSX, mimeZIP) {
			return "", fmt.Errorf("%w: content is %s, not xlsx", ErrUnparseable, mimetype.Detect(raw).String())
		}
		text, err := xlsxText(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, docType)
	}
}

// sniff reports whether the detected type of raw, or one of its parents,
// matches any of the wanted MIME types.
func sniff(raw []byte, wanted ...string) bool {
	for m := mimetype.Detect(raw); m != nil; m = m.Parent() {
		for _, w := range wanted {
			if m.Is(w) {
				return true
			}
		}
	}
	return false
}

// ExtractPDFPages reads the plain text of each page with ledongthuc/pdf.
func ExtractPDFPages(raw []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func readCSV(raw []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

func xlsxText(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", name, err)
		}
		if text := TabularText(rows); text != "" {
			sheets = append(sheets, text)
		}
	}
	return strings.Join(sheets, "\n\n"), nil
}

// TabularText renders rows with the first row as header. Each further row
// becomes one "header: value" line per cell and rows are separated by a
// blank line. Cells beyond the header are named column<N>, counting from 1.
func TabularText(rows [][]string) string {
	if len(rows) < 2 {
		return ""
	}
	header := rows[0]
	records := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		lines := make([]string, 0, len(row))
		for i, cell := range row {
			name := fmt.Sprintf("column%d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			lines = append(lines, name+": "+cell)
		}
		records = append(records, strings.Join(lines, "\n"))
	}
	return strings.Join(records, "\n\n")
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var newlineReplacer = strings.NewReplacer("\r", " ", "\n", " ")

// CollapseNewlines replaces every line break character with a single space.
func CollapseNewlines(text string) string {
	return newlineReplacer.Replace(text)
}
