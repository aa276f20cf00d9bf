// Package export writes the stored record set to JSON, CSV and XLSX files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/patients/internal/core"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatCSV, FormatXLSX}

// BaseName is the file name, without extension, written by ToFile.
const BaseName = "collection"

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q (want json, csv or xlsx)", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Header is the tabular column order: store id, patient_id, then the
// input fields under their external names so the file can be loaded again.
var Header = append([]string{"_id", core.PatientIDName}, core.RequiredFieldNames()...)

// Record is a Patient flattened for export. Dates are YYYY-MM-DD strings.
type Record struct {
	ID                string  `json:"_id"`
	PatientID         string  `json:"patient_id"`
	Name              string  `json:"name"`
	Age               int     `json:"age"`
	Gender            string  `json:"gender"`
	BloodType         string  `json:"blood_type"`
	MedicalCondition  string  `json:"medical_condition"`
	DateOfAdmission   string  `json:"date_of_admission"`
	Doctor            string  `json:"doctor"`
	Hospital          string  `json:"hospital"`
	InsuranceProvider string  `json:"insurance_provider"`
	BillingAmount     float64 `json:"billing_amount"`
	RoomNumber        int     `json:"room_number"`
	AdmissionType     string  `json:"admission_type"`
	DischargeDate     string  `json:"discharge_date"`
	Medication        string  `json:"medication"`
	TestResults       string  `json:"test_results"`
}

// NewRecord flattens p.
func NewRecord(p core.Patient) Record {
	return Record{
		ID:                p.ID,
		PatientID:         p.PatientID,
		Name:              p.Name,
		Age:               p.Age,
		Gender:            p.Gender,
		BloodType:         p.BloodType,
		MedicalCondition:  p.MedicalCondition,
		DateOfAdmission:   formatDate(p.DateOfAdmission),
		Doctor:            p.Doctor,
		Hospital:          p.Hospital,
		InsuranceProvider: p.InsuranceProvider,
		BillingAmount:     p.BillingAmount,
		RoomNumber:        p.RoomNumber,
		AdmissionType:     p.AdmissionType,
		DischargeDate:     formatDate(p.DischargeDate),
		Medication:        p.Medication,
		TestResults:       p.TestResults,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(core.DateLayout)
}

// Cells returns the record's values in Header order. Numbers keep their Go
// type so spreadsheet cells stay numeric.
func (r Record) Cells() []any {
	return []any{
		r.ID,
		r.PatientID,
		r.Name,
		r.Age,
		r.Gender,
		r.BloodType,
		r.MedicalCondition,
		r.DateOfAdmission,
		r.Doctor,
		r.Hospital,
		r.InsuranceProvider,
		r.BillingAmount,
		r.RoomNumber,
		r.AdmissionType,
		r.DischargeDate,
		r.Medication,
		r.TestResults,
	}
}

// Strings returns the record's values in Header order as text.
func (r Record) Strings() []string {
	cells := r.Cells()
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case string:
			out[i] = v
		case int:
			out[i] = strconv.Itoa(v)
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}

func records(patients []core.Patient) []Record {
	out := make([]Record, len(patients))
	for i, p := range patients {
		out[i] = NewRecord(p)
	}
	return out
}

// ToFile writes patients to dir/collection.<format>, creating dir, and
// returns the path written.
func ToFile(dir string, format Format, patients []core.Patient) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, BaseName+"."+string(format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if err := Write(f, format, patients); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// Write dispatches to the writer for format.
func Write(w io.Writer, format Format, patients []core.Patient) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, patients)
	case FormatCSV:
		return WriteCSV(w, patients)
	case FormatXLSX:
		return WriteXLSX(w, patients)
	}
	return fmt.Errorf("unknown export format %q", format)
}
