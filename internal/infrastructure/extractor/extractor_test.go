package extractor

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joee121/realestate/internal/segment"
)

func newTestExtractor() *Extractor {
	return New(segment.New(1200, 200))
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestExtractUnsupportedExtensionSkipped(t *testing.T) {
	chunks, err := newTestExtractor().Extract("picture.png", []byte{0x89, 0x50})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected zero chunks for unsupported extension, got %d", len(chunks))
	}
}

func TestExtractEmptyTxtSilentlySkipped(t *testing.T) {
	chunks, err := newTestExtractor().Extract("empty.txt", nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected zero chunks for zero-byte txt, got %d", len(chunks))
	}
}

func TestExtractTxtProducesIndexedChunks(t *testing.T) {
	content := []byte("  " + strings.Repeat("brochure text ", 10) + "  ")
	chunks, err := newTestExtractor().Extract("brochure.txt", content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ref := chunks[0].Ref
	if ref.Filename != "brochure.txt" || ref.Index != 0 || ref.Sheet != "" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	if ref.SourceTag() != "brochure.txt#chunk0" {
		t.Fatalf("unexpected tag: %s", ref.SourceTag())
	}
}

func TestExtractTxtReplacesInvalidUTF8(t *testing.T) {
	chunks, err := newTestExtractor().Extract("bad.txt", []byte{'o', 'k', 0xff, '!'})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "ok") || !strings.HasSuffix(chunks[0].Text, "!") {
		t.Fatalf("unexpected chunk text: %q", chunks[0].Text)
	}
}

func TestExtractXlsxHeaderRowsBecomeUnits(t *testing.T) {
	content := buildWorkbook(t, [][]interface{}{
		{"Unit", "Price", "Type", "Status"},
		{"A1", "100", "Villa", "Available"},
		{"A2", "200", "Apartment", "Sold"},
	})

	chunks, err := newTestExtractor().Extract("units.xlsx", content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 row units, got %d", len(chunks))
	}

	if !strings.Contains(chunks[0].Text, "Unit: A1 | Price: 100") {
		t.Fatalf("unexpected first row text: %q", chunks[0].Text)
	}
	if !strings.Contains(chunks[1].Text, "Unit: A2 | Price: 200") {
		t.Fatalf("unexpected second row text: %q", chunks[1].Text)
	}
	if !strings.HasPrefix(chunks[0].Text, "[Sheet: Sheet1] ") {
		t.Fatalf("expected sheet prefix, got %q", chunks[0].Text)
	}
	if chunks[0].Ref.Row != "2" || chunks[1].Ref.Row != "3" {
		t.Fatalf("expected spreadsheet row numbers 2 and 3, got %s and %s", chunks[0].Ref.Row, chunks[1].Ref.Row)
	}
	if got := chunks[0].Ref.SourceTag(); got != "units.xlsx::Sheet1#row2" {
		t.Fatalf("unexpected tag: %s", got)
	}
}

func TestExtractXlsxSkipsEmptyAndPlaceholderRows(t *testing.T) {
	content := buildWorkbook(t, [][]interface{}{
		{"Unit", "Price", "Type", "Status"},
		{"", "", "", ""},
		{"none", "NaN", "", ""},
		{"A7", "300", "Villa", "Available"},
	})

	chunks, err := newTestExtractor().Extract("units.xlsx", content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 row unit, got %d", len(chunks))
	}
	if chunks[0].Ref.Row != "4" {
		t.Fatalf("expected row 4, got %s", chunks[0].Ref.Row)
	}
}

func TestExtractXlsxNoHeaderFallsBackToFlattenedText(t *testing.T) {
	content := buildWorkbook(t, [][]interface{}{
		{"Towers overview", "2026"},
		{"North tower", "ready"},
		{"South tower", "under construction"},
	})

	chunks, err := newTestExtractor().Extract("overview.xlsx", content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 flattened chunk, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "[Sheet:Sheet1]") {
		t.Fatalf("expected sheet prefix, got %q", chunks[0].Text)
	}
	if !strings.Contains(chunks[0].Text, "North tower | ready") {
		t.Fatalf("expected pipe-joined cells, got %q", chunks[0].Text)
	}
	if chunks[0].Ref.Row != "text-0" {
		t.Fatalf("expected synthetic row tag, got %s", chunks[0].Ref.Row)
	}
}

func TestFindHeaderRowIdempotent(t *testing.T) {
	rows := [][]string{
		{"brochure", ""},
		{"Unit", "Price", "Floor", "Garden"},
		{"A1", "100", "2", "yes"},
	}
	first := findHeaderRow(rows)
	second := findHeaderRow(rows)
	if first != 1 || second != 1 {
		t.Fatalf("expected header row 1 on both calls, got %d and %d", first, second)
	}
}

func TestFindHeaderRowRequiresFourCellsAndKeyword(t *testing.T) {
	tooFew := [][]string{{"Unit", "Price"}}
	if got := findHeaderRow(tooFew); got != -1 {
		t.Fatalf("expected no header for short row, got %d", got)
	}
	noKeyword := [][]string{{"a", "b", "c", "d"}}
	if got := findHeaderRow(noKeyword); got != -1 {
		t.Fatalf("expected no header without keywords, got %d", got)
	}
}

func TestNormalizeCell(t *testing.T) {
	cases := map[string]string{
		"  spaced   out  ": "spaced out",
		"None":             "",
		"nan":              "",
		"":                 "",
		"A 1":              "A 1",
	}
	for input, want := range cases {
		if got := normalizeCell(input); got != want {
			t.Fatalf("normalizeCell(%q) = %q, want %q", input, got, want)
		}
	}
}
