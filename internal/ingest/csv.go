// Package ingest reads the source dataset into raw records for bulk loading.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/patients/internal/core"
)

// DefaultMaxFileSize is the largest input accepted (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a fully read CSV file.
type Table struct {
	Header []string
	Rows   []core.RawRecord
}

// ReadCSVFile opens path and reads it with ReadCSV. Files larger than
// maxSize (DefaultMaxFileSize when <= 0) are rejected before reading.
func ReadCSVFile(path string, maxSize int64) (*Table, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", core.ErrFileTooLarge, path, info.Size(), maxSize)
	}

	return ReadCSV(f, maxSize)
}

// ReadCSV reads a header row and all data rows from r. A leading UTF-8 BOM
// is dropped and invalid UTF-8 is replaced with U+FFFD. Every required field
// name must appear in the header, matched case-sensitively. Rows whose cells
// are all blank are skipped. Values are kept as strings; validation happens
// later.
func ReadCSV(r io.Reader, maxSize int64) (*Table, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, maxSize)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.ToValidUTF8(data, []byte("\uFFFD"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidCSV, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", core.ErrInvalidCSV)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	if missing := missingColumns(header); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrMissingColumns, strings.Join(missing, ", "))
	}

	table := &Table{Header: header, Rows: make([]core.RawRecord, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if isEmptyRow(rec) {
			continue
		}
		raw := make(core.RawRecord, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(rec) {
				raw[name] = rec[i]
			} else {
				raw[name] = ""
			}
		}
		table.Rows = append(table.Rows, raw)
	}
	return table, nil
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, name := range core.RequiredFieldNames() {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
