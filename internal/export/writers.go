package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/JonMunkholm/patients/internal/core"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Patients"

// WriteJSON writes patients as a JSON array indented with four spaces.
// HTML characters are left unescaped.
func WriteJSON(w io.Writer, patients []core.Patient) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records(patients)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteCSV writes a header row and one row per patient.
func WriteCSV(w io.Writer, patients []core.Patient) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records(patients) {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.PatientID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same table as WriteCSV to a single-sheet workbook.
func WriteXLSX(w io.Writer, patients []core.Patient) error {
	file := excelize.NewFile()
	file.NewSheet(SheetName)
	file.DeleteSheet("Sheet1")

	for col, name := range Header {
		file.SetCellValue(SheetName, cellName(col, 1), name)
	}
	for i, r := range records(patients) {
		for col, v := range r.Cells() {
			file.SetCellValue(SheetName, cellName(col, i+2), v)
		}
	}
	file.SetColWidth(SheetName, columnName(0), columnName(len(Header)-1), 18)

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// cellName returns the A1-style reference for a 0-based column and 1-based row.
func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", columnName(col), row)
}

// columnName converts a 0-based column index to letters: 0 -> A, 26 -> AA.
func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
