// Package pipeline turns uploaded survey files into engine input records.
package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedFormat is returned for files that are neither .csv nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ReadError reports an upload that could not be parsed as a table.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("error reading %s: %v", e.Filename, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Table is a header row plus data rows, all cells as text.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses a .csv or .xlsx upload. charset only applies to CSV.
// Parse failures are returned as *ReadError.
func ReadTable(filename string, r io.Reader, charset string) (*Table, error) {
	var (
		table *Table
		err   error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		var dec transform.Transformer
		if dec, err = decoderFor(charset); err == nil {
			table, err = readCSV(transform.NewReader(r, dec))
		}
	case ".xlsx":
		table, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, &ReadError{Filename: filepath.Base(filename), Err: err}
	}
	return table, nil
}

// decoderFor maps a charset name to a decoder producing UTF-8. A leading
// UTF-8 BOM is always dropped.
func decoderFor(charset string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		enc = unicode.UTF8
	case "gbk":
		enc = simplifiedchinese.GBK
	case "gb18030":
		enc = simplifiedchinese.GB18030
	case "latin1", "iso-8859-1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unknown encoding %q", charset)
	}
	return unicode.BOMOverride(enc.NewDecoder()), nil
}

func readCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return newTable(all)
}

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("read xlsx: workbook has no sheets")
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheet, err)
	}
	return newTable(all)
}

func newTable(all [][]string) (*Table, error) {
	var rows [][]string
	for _, row := range all {
		if !blank(row) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, errors.New("file has no header row")
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
	}
	return &Table{Header: header, Rows: rows[1:]}, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
