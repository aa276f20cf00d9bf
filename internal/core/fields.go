package core

// fields.go holds the fixed field table and the per-field validators.
//
// Every canonical field maps to exactly one FieldType, and every FieldType to
// exactly one validator. Validators are total: they never panic on odd input
// and report problems as plain errors that the record validator wraps with
// the field name.

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Document keys of the canonical record.
const (
	KeyPatientID         = "patient_id"
	KeyName              = "name"
	KeyAge               = "age"
	KeyGender            = "gender"
	KeyBloodType         = "blood_type"
	KeyMedicalCondition  = "medical_condition"
	KeyDateOfAdmission   = "date_of_admission"
	KeyDoctor            = "doctor"
	KeyHospital          = "hospital"
	KeyInsuranceProvider = "insurance_provider"
	KeyBillingAmount     = "billing_amount"
	KeyRoomNumber        = "room_number"
	KeyAdmissionType     = "admission_type"
	KeyDischargeDate     = "discharge_date"
	KeyMedication        = "medication"
	KeyTestResults       = "test_results"
)

// PatientIDName is the external name of the identifier column. It is not a
// required input field.
const PatientIDName = "patient_id"

// Age bounds, inclusive.
const (
	MinAge = 0
	MaxAge = 150
)

// Allowed enumerations. Membership is case-sensitive after trimming.
var (
	Genders    = []string{"Male", "Female", "Other"}
	BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
)

// FieldType selects the validator applied to a field.
type FieldType int

const (
	FieldText         FieldType = iota // trimmed, may be empty
	FieldRequiredText                  // non-empty after trim
	FieldEnum                          // trimmed, member of EnumValues
	FieldDate                          // YYYY-MM-DD
	FieldAmount                        // decimal number
	FieldInteger                       // integer, any range
	FieldAge                           // integer in [MinAge, MaxAge]
	FieldPassthrough                   // stored as received
)

// FieldSpec defines the validation rule for a single canonical field.
type FieldSpec struct {
	Name       string    // External name: CSV column and RawRecord key
	Key        string    // Document key in the store
	Type       FieldType // Validator selector
	EnumValues []string  // Allowed values for FieldEnum
}

// FieldSpecs lists the 15 required input fields in validation order, which
// is also the column order of the source dataset.
var FieldSpecs = []FieldSpec{
	{Name: "Name", Key: KeyName, Type: FieldRequiredText},
	{Name: "Age", Key: KeyAge, Type: FieldAge},
	{Name: "Gender", Key: KeyGender, Type: FieldEnum, EnumValues: Genders},
	{Name: "Blood Type", Key: KeyBloodType, Type: FieldEnum, EnumValues: BloodTypes},
	{Name: "Medical Condition", Key: KeyMedicalCondition, Type: FieldText},
	{Name: "Date of Admission", Key: KeyDateOfAdmission, Type: FieldDate},
	{Name: "Doctor", Key: KeyDoctor, Type: FieldRequiredText},
	{Name: "Hospital", Key: KeyHospital, Type: FieldRequiredText},
	{Name: "Insurance Provider", Key: KeyInsuranceProvider, Type: FieldRequiredText},
	{Name: "Billing Amount", Key: KeyBillingAmount, Type: FieldAmount},
	{Name: "Room Number", Key: KeyRoomNumber, Type: FieldInteger},
	{Name: "Admission Type", Key: KeyAdmissionType, Type: FieldRequiredText},
	{Name: "Discharge Date", Key: KeyDischargeDate, Type: FieldDate},
	{Name: "Medication", Key: KeyMedication, Type: FieldPassthrough},
	{Name: "Test Results", Key: KeyTestResults, Type: FieldPassthrough},
}

// RequiredFieldNames returns the external names of the required input fields
// in validation order.
func RequiredFieldNames() []string {
	names := make([]string, len(FieldSpecs))
	for i, spec := range FieldSpecs {
		names[i] = spec.Name
	}
	return names
}

// LookupField resolves an external name ("Blood Type") or a document key
// ("blood_type") to its spec. Matching is exact.
func LookupField(name string) (FieldSpec, bool) {
	for _, spec := range FieldSpecs {
		if spec.Name == name || spec.Key == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

var (
	errNotText    = errors.New("must be text")
	errEmpty      = errors.New("must not be empty")
	errNotInteger = errors.New("must be an integer")
	errNotNumber  = errors.New("must be a number")
	errBadDate    = errors.New("must be a date in YYYY-MM-DD format")
)

// ValidateAge parses raw as an integer in [MinAge, MaxAge].
func ValidateAge(raw any) (int, error) {
	n, err := ValidateInteger(raw)
	if err != nil {
		return 0, err
	}
	if n < MinAge || n > MaxAge {
		return 0, fmt.Errorf("must be between %d and %d", MinAge, MaxAge)
	}
	return n, nil
}

// ValidateEnum trims raw and checks it against allowed, case-sensitively.
func ValidateEnum(raw any, allowed []string) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", errNotText
	}
	s = strings.TrimSpace(s)
	for _, v := range allowed {
		if s == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
}

// ValidateNonEmptyString requires raw to be a string that is not blank.
func ValidateNonEmptyString(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", errNotText
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errEmpty
	}
	return s, nil
}

// ValidateText requires raw to be a string and trims it. Blank is allowed.
func ValidateText(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", errNotText
	}
	return strings.TrimSpace(s), nil
}

// ValidateDate parses raw strictly as YYYY-MM-DD after trimming.
func ValidateDate(raw any) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, errBadDate
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errBadDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return t, nil
}

// ValidateAmount parses raw as a finite decimal. When lenient is set (the
// update path) a ',' decimal separator is accepted and the result is rounded
// to two fractional digits.
func ValidateAmount(raw any, lenient bool) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, errNotNumber
		}
		f = parsed
	case string:
		s := strings.TrimSpace(v)
		if lenient {
			s = strings.ReplaceAll(s, ",", ".")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errNotNumber
		}
		f = parsed
	default:
		return 0, errNotNumber
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	if lenient {
		f = math.Round(f*100) / 100
	}
	return f, nil
}

// ValidateInteger parses raw as an integer. Whole-valued floats are accepted
// since JSON numbers decode as float64.
func ValidateInteger(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
			return 0, errNotInteger
		}
		return int(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, errNotInteger
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, errNotInteger
		}
		return n, nil
	default:
		return 0, errNotInteger
	}
}

// Passthrough stores raw as received. Numbers and booleans are rendered in
// their plain string form; nil becomes "".
func Passthrough(raw any) (string, error) {
	s, ok := rawString(raw)
	if !ok {
		return "", errNotText
	}
	return s, nil
}

// rawString renders scalar raw values as strings without trimming.
func rawString(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// validateField dispatches raw to the validator for spec.Type.
func validateField(spec FieldSpec, raw any, lenientAmount bool) (any, error) {
	switch spec.Type {
	case FieldText:
		return ValidateText(raw)
	case FieldRequiredText:
		return ValidateNonEmptyString(raw)
	case FieldEnum:
		return ValidateEnum(raw, spec.EnumValues)
	case FieldDate:
		return ValidateDate(raw)
	case FieldAmount:
		return ValidateAmount(raw, lenientAmount)
	case FieldInteger:
		return ValidateInteger(raw)
	case FieldAge:
		return ValidateAge(raw)
	case FieldPassthrough:
		return Passthrough(raw)
	default:
		return nil, fmt.Errorf("no validator for field type %d", spec.Type)
	}
}
