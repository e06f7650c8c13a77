package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var surveyColumns = map[string]string{
	"teaching_method":     "metode_pengajaran",
	"learning_facilities": "fasilitas_pembelajaran",
}

func TestReadTableCSV(t *testing.T) {
	body := "\ufeffnama, metode_pengajaran,fasilitas_pembelajaran\nAni,5,4\n\n,,\nBudi,3,3\n"
	table, err := ReadTable("survey.CSV", strings.NewReader(body), "")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if table.Header[0] != "nama" || table.Header[1] != "metode_pengajaran" {
		t.Fatalf("unexpected header: %q", table.Header)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
}

func TestReadTableLatin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().String("métode,x\n1,2\n")
	if err != nil {
		t.Fatal(err)
	}
	table, err := ReadTable("a.csv", strings.NewReader(encoded), "latin1")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if table.Header[0] != "métode" {
		t.Errorf("header = %q, want métode", table.Header[0])
	}
}

func TestReadTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"metode_pengajaran", "fasilitas_pembelajaran"},
		{5, 5},
		{1, 2},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	table, err := ReadTable("survey.xlsx", bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[1][1] != "2" {
		t.Fatalf("unexpected rows: %q", table.Rows)
	}
}

func TestReadTableErrors(t *testing.T) {
	if _, err := ReadTable("survey.pdf", strings.NewReader(""), ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	tests := []struct {
		name     string
		filename string
		body     string
		charset  string
	}{
		{"unknown encoding", "a.csv", "a\n", "ebcdic"},
		{"no header", "a.csv", "\n\n", ""},
		{"bad quoting", "a.csv", "a,\"b\n1,2", ""},
		{"corrupt workbook", "a.xlsx", "not a zip", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(tt.filename, strings.NewReader(tt.body), tt.charset)
			var readErr *ReadError
			if !errors.As(err, &readErr) {
				t.Fatalf("expected *ReadError, got %v", err)
			}
			if readErr.Filename != tt.filename {
				t.Errorf("filename = %q, want %q", readErr.Filename, tt.filename)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	table := &Table{
		Header: []string{"metode_pengajaran", "fasilitas_pembelajaran"},
		Rows:   [][]string{{"5", "4"}, {"2,5", " 3 "}},
	}
	ex := NewExtractor(surveyColumns, false)
	out, err := ex.Extract(table)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out.Records))
	}
	if out.Records[1]["teaching_method"] != 2.5 || out.Records[1]["learning_facilities"] != 3 {
		t.Errorf("unexpected record: %v", out.Records[1])
	}
	if out.Rows[0] != 2 || out.Rows[1] != 3 {
		t.Errorf("unexpected row numbers: %v", out.Rows)
	}
}

func TestExtractMissingColumns(t *testing.T) {
	table := &Table{Header: []string{"metode_pengajaran"}}
	_, err := NewExtractor(surveyColumns, false).Extract(table)

	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if len(missing.Columns) != 1 || missing.Columns[0] != "fasilitas_pembelajaran" {
		t.Errorf("unexpected missing columns: %v", missing.Columns)
	}
}

func TestExtractInvalidRows(t *testing.T) {
	table := &Table{
		Header: []string{"metode_pengajaran", "fasilitas_pembelajaran"},
		Rows:   [][]string{{"5", "4"}, {"", "3"}, {"baik", "3"}, {"4"}},
	}

	tests := []struct {
		name        string
		skipInvalid bool
		wantErr     bool
		wantRecords int
	}{
		{"reject", false, true, 0},
		{"skip", true, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewExtractor(surveyColumns, tt.skipInvalid)
			out, err := ex.Extract(table)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Extract() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var invalid *InvalidRowsError
				if !errors.As(err, &invalid) || len(invalid.Issues) != 3 {
					t.Fatalf("expected 3 issues, got %v", err)
				}
				if invalid.Issues[0].Row != 3 || invalid.Issues[0].Rule != "required_value" || invalid.Issues[0].Column != "metode_pengajaran" {
					t.Errorf("unexpected first issue: %+v", invalid.Issues[0])
				}
				if invalid.Issues[1].Rule != "numeric" {
					t.Errorf("unexpected second issue: %+v", invalid.Issues[1])
				}
				if invalid.Issues[2].Column != "fasilitas_pembelajaran" {
					t.Errorf("short row should report the absent column: %+v", invalid.Issues[2])
				}
				return
			}
			if len(out.Records) != tt.wantRecords || len(out.Issues) != 3 {
				t.Errorf("records=%d issues=%d", len(out.Records), len(out.Issues))
			}

			stats := ex.GetStats()
			if stats.TotalProcessed != 4 || stats.Passed != 1 || stats.Rejected != 3 {
				t.Errorf("unexpected stats: %+v", stats)
			}
			if stats.Issues["required_value"] != 2 || stats.Issues["numeric"] != 1 {
				t.Errorf("unexpected issue counts: %v", stats.Issues)
			}
		})
	}
}

func TestArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	path, err := Archive(dir, "abc", `C:\Users\ani\..\survey.xlsx`, []byte("data"))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Base(path) != "abc_survey.xlsx" {
		t.Errorf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "data" {
		t.Errorf("archived content = %q, %v", data, err)
	}
}
