package extractor

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joee121/realestate/internal/core/domain"
)

// headerKeywords is the fixed, English-only keyword set used by the header
// heuristic. Sheets labeled differently fall back to the flattened-text
// path; this is a documented limitation of the heuristic.
var headerKeywords = []string{
	"unit", "type", "status", "phase", "price",
	"delivery", "floor", "bed", "garden", "roof",
}

const (
	headerScanRows  = 50
	headerMinCells  = 4
	headlessMaxRows = 300
)

func (e *Extractor) sheetChunks(filename string, content []byte) ([]domain.Chunk, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	var chunks []domain.Chunk
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		headerIdx := findHeaderRow(rows)
		if headerIdx < 0 {
			chunks = append(chunks, e.headlessSheetChunks(filename, sheet, rows)...)
			continue
		}
		chunks = append(chunks, rowChunks(filename, sheet, rows, headerIdx)...)
	}
	return chunks, nil
}

// rowChunks emits one retrievable unit per populated data row below the
// header. Row refs carry the 1-based spreadsheet row number.
func rowChunks(filename, sheet string, rows [][]string, headerIdx int) []domain.Chunk {
	headers := make([]string, len(rows[headerIdx]))
	for j, cell := range rows[headerIdx] {
		name := normalizeCell(cell)
		if name == "" {
			name = "col_" + strconv.Itoa(j)
		}
		headers[j] = name
	}

	var chunks []domain.Chunk
	for ridx := headerIdx + 1; ridx < len(rows); ridx++ {
		row := rows[ridx]
		if len(row) == 0 {
			continue
		}

		cells := make([]string, len(row))
		empty := true
		for j, cell := range row {
			cells[j] = normalizeCell(cell)
			if cells[j] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		parts := make([]string, 0, len(headers))
		for j, name := range headers {
			value := ""
			if j < len(cells) {
				value = cells[j]
			}
			if value != "" {
				parts = append(parts, name+": "+value)
			}
		}
		if len(parts) == 0 {
			continue
		}

		chunks = append(chunks, domain.Chunk{
			Text: fmt.Sprintf("[Sheet: %s] %s", sheet, strings.Join(parts, " | ")),
			Ref: domain.ChunkRef{
				Filename: filename,
				Sheet:    sheet,
				Row:      strconv.Itoa(ridx + 1),
			},
		})
	}
	return chunks
}

// headlessSheetChunks flattens the first rows of a sheet without a
// detectable header into pipe-joined lines and re-segments the blob. Row
// refs carry a synthetic "text-{i}" tag instead of a row number.
func (e *Extractor) headlessSheetChunks(filename, sheet string, rows [][]string) []domain.Chunk {
	limit := len(rows)
	if limit > headlessMaxRows {
		limit = headlessMaxRows
	}

	lines := make([]string, 0, limit)
	for _, row := range rows[:limit] {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			if normalized := normalizeCell(cell); normalized != "" {
				cells = append(cells, normalized)
			}
		}
		lines = append(lines, strings.Join(cells, " | "))
	}

	flat := strings.Join(lines, "\n")
	if strings.TrimSpace(flat) == "" {
		return nil
	}

	var chunks []domain.Chunk
	for i, part := range e.splitter.Split(fmt.Sprintf("[Sheet:%s]\n%s", sheet, flat)) {
		chunks = append(chunks, domain.Chunk{
			Text: part,
			Ref: domain.ChunkRef{
				Filename: filename,
				Sheet:    sheet,
				Row:      "text-" + strconv.Itoa(i),
			},
		})
	}
	return chunks
}

// findHeaderRow scans at most the first 50 rows; a row qualifies when it
// has at least 4 non-empty normalized cells and at least one cell contains
// a known header keyword. First qualifying row wins; -1 means no header.
func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}

	for i := 0; i < limit; i++ {
		nonEmpty := 0
		keyword := false
		for _, cell := range rows[i] {
			value := strings.ToLower(normalizeCell(cell))
			if value == "" {
				continue
			}
			nonEmpty++
			for _, k := range headerKeywords {
				if strings.Contains(value, k) {
					keyword = true
					break
				}
			}
		}
		if nonEmpty >= headerMinCells && keyword {
			return i
		}
	}
	return -1
}

// normalizeCell trims, collapses internal whitespace runs and maps the
// literal values "none"/"nan" (any case) to the empty string.
func normalizeCell(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}
	switch strings.ToLower(s) {
	case "none", "nan":
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}
