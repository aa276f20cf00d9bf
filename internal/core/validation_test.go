package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func validRaw() RawRecord {
	return RawRecord{
		"Name":               "John Doe",
		"Age":                "45",
		"Gender":             "Male",
		"Blood Type":         "O+",
		"Medical Condition":  "Diabetes",
		"Date of Admission":  "2024-01-15",
		"Doctor":             "Dr. Smith",
		"Hospital":           "General Hospital",
		"Insurance Provider": "Medicare",
		"Billing Amount":     "1234.56",
		"Room Number":        "101",
		"Admission Type":     "Emergency",
		"Discharge Date":     "2024-01-20",
		"Medication":         "Metformin",
		"Test Results":       "Normal",
	}
}

func TestValidate_ValidRecord(t *testing.T) {
	p, err := Validator{}.Validate(validRaw())
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	want := Patient{
		Name:              "John Doe",
		Age:               45,
		Gender:            "Male",
		BloodType:         "O+",
		MedicalCondition:  "Diabetes",
		DateOfAdmission:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Doctor:            "Dr. Smith",
		Hospital:          "General Hospital",
		InsuranceProvider: "Medicare",
		BillingAmount:     1234.56,
		RoomNumber:        101,
		AdmissionType:     "Emergency",
		DischargeDate:     time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Medication:        "Metformin",
		TestResults:       "Normal",
	}
	if !reflect.DeepEqual(*p, want) {
		t.Errorf("Validate() = %+v\nwant %+v", *p, want)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	first, err := Validator{}.Validate(validRaw())
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	first.PatientID = "P00007"

	second, err := Validator{}.Validate(first.Raw())
	if err != nil {
		t.Fatalf("Validate(Raw()) unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip changed record:\n got %+v\nwant %+v", second, first)
	}
}

func TestValidate_FailFast(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(RawRecord)
		wantField string
		wantKind  error
	}{
		{
			name:      "missing field",
			mutate:    func(r RawRecord) { delete(r, "Hospital") },
			wantField: "Hospital",
			wantKind:  ErrMissingField,
		},
		{
			name: "first missing field in column order",
			mutate: func(r RawRecord) {
				delete(r, "Test Results")
				delete(r, "Gender")
			},
			wantField: "Gender",
			wantKind:  ErrMissingField,
		},
		{
			name:      "missing beats invalid",
			mutate:    func(r RawRecord) { r["Age"] = "200"; delete(r, "Medication") },
			wantField: "Medication",
			wantKind:  ErrMissingField,
		},
		{
			name:      "age out of range",
			mutate:    func(r RawRecord) { r["Age"] = "151" },
			wantField: "Age",
			wantKind:  ErrInvalidFieldValue,
		},
		{
			name:      "blank name",
			mutate:    func(r RawRecord) { r["Name"] = "   " },
			wantField: "Name",
			wantKind:  ErrInvalidFieldValue,
		},
		{
			name:      "bad date",
			mutate:    func(r RawRecord) { r["Discharge Date"] = "20-01-2024" },
			wantField: "Discharge Date",
			wantKind:  ErrInvalidFieldValue,
		},
		{
			name:      "comma amount on insert",
			mutate:    func(r RawRecord) { r["Billing Amount"] = "12,50" },
			wantField: "Billing Amount",
			wantKind:  ErrInvalidFieldValue,
		},
		{
			name: "first invalid field in column order",
			mutate: func(r RawRecord) {
				r["Room Number"] = "A1"
				r["Blood Type"] = "Q"
			},
			wantField: "Blood Type",
			wantKind:  ErrInvalidFieldValue,
		},
		{
			name:      "malformed patient_id",
			mutate:    func(r RawRecord) { r[PatientIDName] = "X1" },
			wantField: PatientIDName,
			wantKind:  ErrInvalidFieldValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)

			_, err := Validator{}.Validate(raw)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Validate() error = %v, want kind %v", err, tt.wantKind)
			}
			if got := RejectedField(err); got != tt.wantField {
				t.Errorf("rejected field = %q, want %q", got, tt.wantField)
			}
			var ves ValidationErrors
			if errors.As(err, &ves) {
				t.Errorf("fail-fast validator returned %d accumulated errors", len(ves))
			}
		})
	}
}

func TestValidate_Accumulate(t *testing.T) {
	raw := validRaw()
	raw["Age"] = "-1"
	raw["Gender"] = "Unknown"
	raw["Date of Admission"] = ""

	_, err := Validator{Accumulate: true}.Validate(raw)

	var ves ValidationErrors
	if !errors.As(err, &ves) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
	var fields []string
	for _, ve := range ves {
		fields = append(fields, ve.Field)
	}
	want := []string{"Age", "Gender", "Date of Admission"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
	if !errors.Is(err, ErrInvalidFieldValue) {
		t.Error("accumulated errors should match ErrInvalidFieldValue")
	}
}

func TestValidate_AccumulateMalformedPatientID(t *testing.T) {
	raw := validRaw()
	raw["Age"] = "151"
	raw[PatientIDName] = "X1"

	_, err := Validator{Accumulate: true}.Validate(raw)

	var ves ValidationErrors
	if !errors.As(err, &ves) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
	var fields []string
	for _, ve := range ves {
		fields = append(fields, ve.Field)
	}
	want := []string{"Age", PatientIDName}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}

	raw["Age"] = "46"
	_, err = Validator{Accumulate: true}.Validate(raw)
	if !errors.As(err, &ves) || len(ves) != 1 || ves[0].Field != PatientIDName {
		t.Errorf("Validate() error = %v, want only the patient_id error", err)
	}

	_, err = Validator{}.Validate(raw)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != PatientIDName {
		t.Errorf("fail-fast Validate() error = %v, want patient_id error", err)
	}
}

func TestValidate_SuppliedPatientID(t *testing.T) {
	raw := validRaw()
	raw[PatientIDName] = " p00042 "

	p, err := Validator{}.Validate(raw)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if p.PatientID != "P00042" {
		t.Errorf("PatientID = %q, want P00042", p.PatientID)
	}

	raw[PatientIDName] = ""
	p, err = Validator{}.Validate(raw)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if p.PatientID != "" {
		t.Errorf("blank patient_id should be left for the allocator, got %q", p.PatientID)
	}
}

func TestValidate_IgnoresIDWhenAssigned(t *testing.T) {
	raw := validRaw()
	raw[PatientIDName] = "garbage"

	p, err := Validator{}.validate(raw, false)
	if err != nil {
		t.Fatalf("validate() unexpected error: %v", err)
	}
	if p.PatientID != "" {
		t.Errorf("PatientID = %q, want empty", p.PatientID)
	}
}

func TestValidatePatch(t *testing.T) {
	tests := []struct {
		name      string
		raw       RawRecord
		want      Patch
		wantKind  error
		wantField string
	}{
		{
			name: "single field by external name",
			raw:  RawRecord{"Age": 46},
			want: Patch{KeyAge: 46},
		},
		{
			name: "document key",
			raw:  RawRecord{"blood_type": "B-"},
			want: Patch{KeyBloodType: "B-"},
		},
		{
			name: "comma amount rounded",
			raw:  RawRecord{"Billing Amount": "1999,999"},
			want: Patch{KeyBillingAmount: 2000.0},
		},
		{
			name: "blank medical condition allowed",
			raw:  RawRecord{"Medical Condition": ""},
			want: Patch{KeyMedicalCondition: ""},
		},
		{
			name:      "age out of range",
			raw:       RawRecord{"Age": 200},
			wantKind:  ErrInvalidFieldValue,
			wantField: "Age",
		},
		{
			name:      "unknown field",
			raw:       RawRecord{"Shoe Size": "42"},
			wantKind:  ErrUnknownField,
			wantField: "Shoe Size",
		},
		{
			name:      "unknown field checked before values",
			raw:       RawRecord{"Age": 200, "Zodiac": "Leo"},
			wantKind:  ErrUnknownField,
			wantField: "Zodiac",
		},
		{
			name:      "patient_id immutable",
			raw:       RawRecord{PatientIDName: "P00001"},
			wantKind:  ErrInvalidFieldValue,
			wantField: PatientIDName,
		},
		{
			name:      "external name and document key for one field",
			raw:       RawRecord{"Age": "46", "age": "50"},
			wantKind:  ErrInvalidFieldValue,
			wantField: "age",
		},
		{
			name:      "first invalid in column order",
			raw:       RawRecord{"Room Number": "x", "Gender": "?"},
			wantKind:  ErrInvalidFieldValue,
			wantField: "Gender",
		},
		{
			name:     "empty",
			raw:      RawRecord{},
			wantKind: ErrEmptyUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validator{}.ValidatePatch(tt.raw)
			if tt.wantKind != nil {
				if !errors.Is(err, tt.wantKind) {
					t.Fatalf("ValidatePatch() error = %v, want kind %v", err, tt.wantKind)
				}
				if f := RejectedField(err); f != tt.wantField {
					t.Errorf("rejected field = %q, want %q", f, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidatePatch() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidatePatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidatePatch_AccumulateDuplicateKey(t *testing.T) {
	_, err := Validator{Accumulate: true}.ValidatePatch(RawRecord{
		"Blood Type": "A+",
		"blood_type": "B+",
		"Age":        "46",
	})

	var ves ValidationErrors
	if !errors.As(err, &ves) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
	if len(ves) != 1 || ves[0].Field != "blood_type" {
		t.Errorf("errors = %v, want one for blood_type", ves)
	}
}

func TestPatchApply(t *testing.T) {
	p, err := Validator{}.Validate(validRaw())
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	patch, err := Validator{}.ValidatePatch(RawRecord{"Age": "46", "Doctor": "Dr. Who"})
	if err != nil {
		t.Fatalf("ValidatePatch() unexpected error: %v", err)
	}
	p.Apply(patch)

	if p.Age != 46 || p.Doctor != "Dr. Who" {
		t.Errorf("after Apply: age=%d doctor=%q", p.Age, p.Doctor)
	}
	if p.Name != "John Doe" {
		t.Errorf("Apply touched an unpatched field: name=%q", p.Name)
	}
	if got := patch.FieldNames(); !reflect.DeepEqual(got, []string{"Age", "Doctor"}) {
		t.Errorf("FieldNames() = %v", got)
	}
}
