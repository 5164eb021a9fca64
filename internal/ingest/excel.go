// Package ingest turns an Excel knowledge workbook into embedded vectors
// in the index. Sheets are chunked by section breaks; module catalog sheets
// additionally yield one chunk per module row.
package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// maxSectionChars splits a running section once it grows past this.
	maxSectionChars = 1500

	// minChunkChars drops fragments too short to be worth embedding.
	minChunkChars = 30

	maxIDChars = 200
)

// Record is one chunk of workbook text ready for embedding.
type Record struct {
	ID     string
	Text   string
	Source string
	Sheet  string
}

// ReadWorkbook parses the workbook at path into records.
func ReadWorkbook(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	return ParseWorkbook(f)
}

// ParseWorkbook parses workbook bytes into records.
func ParseWorkbook(r io.Reader) ([]Record, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}
	defer wb.Close()

	var records []Record
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		records = append(records, chunkSheet(sheet, rows, len(records))...)
	}

	for _, sheet := range wb.GetSheetList() {
		lower := strings.ToLower(sheet)
		if !strings.Contains(lower, "corp") && !strings.Contains(lower, "modul") {
			continue
		}
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		records = append(records, moduleChunks(sheet, rows)...)
	}

	return records, nil
}

// chunkSheet walks a sheet row by row, accumulating sections delimited by
// blank rows and short single-cell header rows. offset keeps chunk IDs
// unique across sheets.
func chunkSheet(sheet string, rows [][]string, offset int) []Record {
	var (
		records []Record
		section []string
		current string
	)

	flush := func() {
		if len(section) == 0 {
			return
		}
		text := strings.Join(section, "\n")
		if len(text) > minChunkChars {
			records = append(records, Record{
				ID:     sanitizeID(fmt.Sprintf("vasefirma_%s_section_%d", sheet, offset+len(records))),
				Text:   text,
				Source: sectionSource(sheet, current),
				Sheet:  sheet,
			})
		}
		section = nil
	}

	for _, row := range rows {
		cells := nonEmptyCells(row)

		if len(cells) == 0 {
			flush()
			continue
		}

		// A lone short cell reads as a section header.
		if len(cells) == 1 && len(cells[0]) < 100 {
			flush()
			current = cells[0]
			section = append(section, "## "+current)
			continue
		}

		rowText := strings.Join(cells, " | ")
		if len(rowText) > 10 {
			section = append(section, rowText)
		}

		if len(strings.Join(section, "\n")) > maxSectionChars {
			text := strings.Join(section, "\n")
			records = append(records, Record{
				ID:     sanitizeID(fmt.Sprintf("vasefirma_%s_section_%d", sheet, offset+len(records))),
				Text:   text,
				Source: sectionSource(sheet, current),
				Sheet:  sheet,
			})
			section = nil
			if current != "" {
				section = append(section, "## "+current+" (pokracovani)")
			}
		}
	}
	flush()

	return records
}

// moduleChunks extracts one record per module row: name, type and
// description in the first three columns, header row skipped.
func moduleChunks(sheet string, rows [][]string) []Record {
	var records []Record
	for i, row := range rows {
		if i == 0 {
			continue
		}

		name := strings.TrimSpace(cell(row, 0))
		typ := strings.TrimSpace(cell(row, 1))
		desc := strings.TrimSpace(cell(row, 2))
		if name == "" || desc == "" || len(name) <= 2 {
			continue
		}

		records = append(records, Record{
			ID:     sanitizeID("vasefirma_module_" + name),
			Text:   fmt.Sprintf("Modul: %s\nTyp: %s\nPopis: %s", name, typ, desc),
			Source: "Moduly aplikace - " + name,
			Sheet:  sheet,
		})
	}
	return records
}

func sectionSource(sheet, section string) string {
	if section == "" {
		return sheet
	}
	return sheet + " - " + section
}

func nonEmptyCells(row []string) []string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if t := strings.TrimSpace(c); t != "" {
			cells = append(cells, t)
		}
	}
	return cells
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// sanitizeID makes a chunk name safe for use as a vector ID: diacritics
// stripped, anything outside [a-zA-Z0-9_-] replaced, length capped.
func sanitizeID(s string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	id := b.String()
	if len(id) > maxIDChars {
		id = id[:maxIDChars]
	}
	return id
}
