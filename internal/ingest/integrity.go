package ingest

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/JonMunkholm/patients/internal/core"
)

// Report summarizes a table before it is loaded. It is informational; a
// table with issues is still loaded and the validator decides per row.
type Report struct {
	Rows         int            `json:"rows"`
	Columns      int            `json:"columns"`
	EmptyCells   map[string]int `json:"empty_cells,omitempty"`   // column -> blank cells
	DuplicateIDs []string       `json:"duplicate_ids,omitempty"` // patient_id values seen more than once
	ExtraColumns []string       `json:"extra_columns,omitempty"` // header names that are not fields
}

// Clean reports whether no issues were found.
func (r Report) Clean() bool {
	return len(r.EmptyCells) == 0 && len(r.DuplicateIDs) == 0
}

// Check builds the integrity report for t.
func Check(t *Table) Report {
	rep := Report{
		Rows:       len(t.Rows),
		Columns:    len(t.Header),
		EmptyCells: make(map[string]int),
	}

	for _, name := range t.Header {
		if name == core.PatientIDName || name == "_id" {
			continue
		}
		if _, ok := core.LookupField(name); !ok {
			rep.ExtraColumns = append(rep.ExtraColumns, name)
		}
	}

	seen := make(map[string]int)
	for _, row := range t.Rows {
		for _, name := range t.Header {
			if s, _ := row[name].(string); strings.TrimSpace(s) == "" {
				rep.EmptyCells[name]++
			}
		}
		if id, _ := row[core.PatientIDName].(string); id != "" {
			seen[core.NormalizePatientID(id)]++
		}
	}
	if len(rep.EmptyCells) == 0 {
		rep.EmptyCells = nil
	}

	for id, n := range seen {
		if n > 1 {
			rep.DuplicateIDs = append(rep.DuplicateIDs, id)
		}
	}
	sort.Strings(rep.DuplicateIDs)
	return rep
}

// Log writes the report at info, or warn when issues were found.
func (r Report) Log(logger *slog.Logger) {
	attrs := []any{"rows", r.Rows, "columns", r.Columns}
	if r.Clean() {
		logger.Info("data integrity check passed", attrs...)
		return
	}
	if len(r.EmptyCells) > 0 {
		attrs = append(attrs, "empty_cells", r.EmptyCells)
	}
	if len(r.DuplicateIDs) > 0 {
		attrs = append(attrs, "duplicate_patient_ids", len(r.DuplicateIDs))
	}
	if len(r.ExtraColumns) > 0 {
		attrs = append(attrs, "extra_columns", r.ExtraColumns)
	}
	logger.Warn("data integrity issues found", attrs...)
}
