package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/models"
)

// ErrEmptyReport is returned for a report body with no usable rows.
var ErrEmptyReport = errors.New("parsers: report contains no data rows")

// ReportParser turns raw delimited report text into a ParsedTable. Exports
// prepend variable amounts of banner and metadata text before the real
// header, so the header row is detected, never assumed at a fixed index.
type ReportParser struct{}

func NewReportParser() *ReportParser {
	return &ReportParser{}
}

// Parse splits the text into rows, locates the header row for the report
// family and maps data rows to canonical field names. Unmapped fields are
// simply absent from the row maps, not an error.
func (p *ReportParser) Parse(text string, reportType models.ReportType) (*models.ParsedTable, error) {
	family, ok := families[reportType]
	if !ok {
		return nil, fmt.Errorf("parsers: unsupported report type %q", reportType)
	}

	rows := splitRows(text)
	if len(rows) == 0 {
		return nil, ErrEmptyReport
	}

	headerIdx := detectHeaderRow(rows, family.headerTokens)
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: no header row found", ErrEmptyReport)
	}

	header := rows[headerIdx]
	columns := mapColumns(header, family.synonyms)

	var data []map[string]string
	for _, row := range rows[headerIdx+1:] {
		mapped := make(map[string]string, len(columns))
		for field, col := range columns {
			if col < len(row) {
				mapped[field] = strings.TrimSpace(row[col])
			}
		}
		data = append(data, mapped)
	}

	logger.L.Debug("Report parsed",
		"reportType", reportType, "headerIndex", headerIdx, "rows", len(data))

	return &models.ParsedTable{
		Header:      header,
		HeaderIndex: headerIdx,
		Columns:     columns,
		Rows:        data,
	}, nil
}

// splitRows splits the report into cell rows, dropping blank rows. The
// delimiter is sniffed from the text: tabs win when present, otherwise the
// rows are parsed as CSV.
func splitRows(text string) [][]string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	tabbed := strings.Contains(text, "\t")

	var rows [][]string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var cells []string
		if tabbed {
			cells = strings.Split(line, "\t")
		} else {
			reader := csv.NewReader(strings.NewReader(line))
			reader.FieldsPerRecord = -1
			reader.LazyQuotes = true
			record, err := reader.Read()
			if err != nil {
				// Banner lines are frequently not valid CSV; keep them as a
				// single cell so header detection can skip past them.
				cells = []string{line}
			} else {
				cells = record
			}
		}
		rows = append(rows, cells)
	}
	return rows
}

// detectHeaderRow scores every row against the expected header tokens. The
// first row with at least 2 token matches, or at least 1 match across 10 or
// more populated cells, is the header. If nothing matches, fall back to the
// first row with more than one non-empty cell. Returns -1 when no candidate
// exists.
func detectHeaderRow(rows [][]string, tokens []string) int {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	for i, row := range rows {
		matches := 0
		populated := 0
		for _, cell := range row {
			norm := normalizeCell(cell)
			if norm == "" {
				continue
			}
			populated++
			if tokenSet[norm] {
				matches++
			}
		}
		if matches >= 2 || (matches >= 1 && populated >= 10) {
			return i
		}
	}

	for i, row := range rows {
		populated := 0
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				populated++
			}
		}
		if populated > 1 {
			return i
		}
	}
	return -1
}

// mapColumns resolves each canonical field to a column index by trying its
// synonym spellings in order. Fields without a matching column stay
// unmapped.
func mapColumns(header []string, synonyms map[string][]string) map[string]int {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = normalizeCell(cell)
	}

	columns := make(map[string]int)
	for field, spellings := range synonyms {
		for _, spelling := range spellings {
			found := false
			for i, norm := range normalized {
				if norm == spelling {
					columns[field] = i
					found = true
					break
				}
			}
			if found {
				break
			}
		}
	}
	return columns
}

// normalizeCell lowercases and strips everything that is not a letter or
// digit, so "Order ID", "order-id" and "ORDER_ID" all compare equal.
func normalizeCell(cell string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(cell)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount extracts a number from a monetary cell, stripping currency
// symbols and separators first. The second return is false when the cell
// holds no parseable number: such cells are skipped by aggregation, never
// zero-filled, so a genuinely absent amount cannot corrupt totals.
func ParseAmount(cell string) (float64, bool) {
	var b strings.Builder
	for _, r := range cell {
		if r >= '0' && r <= '9' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
