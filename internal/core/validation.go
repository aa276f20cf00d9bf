package core

// validation.go turns RawRecords into canonical Patients.
//
// Validation happens in two steps:
//  1. Presence: all 15 required field names must be keys of the record
//  2. Values: each field is run through its validator in FieldSpecs order
//
// By default the first failure aborts the whole record and names the field.
// A Validator with Accumulate set reports every failing field instead; the
// result is a ValidationErrors value.

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// patientIDPattern matches a well-formed identifier: 'P' and at least five digits.
var patientIDPattern = regexp.MustCompile(`^P\d{5,}$`)

// ErrEmptyUpdate is returned by ValidatePatch when no fields are supplied.
var ErrEmptyUpdate = errors.New("no fields to update")

// Validator validates raw records against FieldSpecs. The zero value is a
// fail-fast validator.
type Validator struct {
	Accumulate bool // Report all failing fields instead of the first
}

// Validate checks presence and values of every required field and returns
// the canonical record. PatientID is set only when the input supplies a
// non-empty patient_id; otherwise it is left for the allocator.
func (v Validator) Validate(raw RawRecord) (*Patient, error) {
	return v.validate(raw, true)
}

// validate runs Validate. With acceptID unset any patient_id in raw is
// ignored, as bulk loads assign identifiers by position.
func (v Validator) validate(raw RawRecord, acceptID bool) (*Patient, error) {
	var errs ValidationErrors

	for _, spec := range FieldSpecs {
		if _, ok := raw[spec.Name]; ok {
			continue
		}
		if !v.Accumulate {
			return nil, missingField(spec.Name)
		}
		errs = append(errs, missingField(spec.Name))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	p := &Patient{}
	for _, spec := range FieldSpecs {
		value, err := validateField(spec, raw[spec.Name], false)
		if err != nil {
			ve := invalidField(spec.Name, raw[spec.Name], err)
			if !v.Accumulate {
				return nil, ve
			}
			errs = append(errs, ve)
			continue
		}
		p.set(spec.Key, value)
	}

	if acceptID {
		id, ve := suppliedPatientID(raw)
		if ve != nil {
			if !v.Accumulate {
				return nil, ve
			}
			errs = append(errs, ve)
		}
		p.PatientID = id
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return p, nil
}

// ValidatePatch validates a partial update. Keys may be external names or
// document keys. Unknown keys, patient_id and a second key naming an
// already supplied field are rejected before any value is checked, then
// values are checked in FieldSpecs order. Amounts use the lenient parser.
func (v Validator) ValidatePatch(raw RawRecord) (Patch, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyUpdate
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs ValidationErrors
	supplied := make(map[string]string, len(raw)) // document key -> raw key
	for _, name := range names {
		if name == PatientIDName {
			ve := &ValidationError{Field: name, Message: "is immutable", Kind: ErrInvalidFieldValue}
			if !v.Accumulate {
				return nil, ve
			}
			errs = append(errs, ve)
			continue
		}
		spec, ok := LookupField(name)
		if !ok {
			if !v.Accumulate {
				return nil, unknownField(name)
			}
			errs = append(errs, unknownField(name))
			continue
		}
		if first, dup := supplied[spec.Key]; dup {
			ve := &ValidationError{Field: name, Message: "duplicates " + first, Kind: ErrInvalidFieldValue}
			if !v.Accumulate {
				return nil, ve
			}
			errs = append(errs, ve)
			continue
		}
		supplied[spec.Key] = name
	}

	patch := make(Patch, len(supplied))
	for _, spec := range FieldSpecs {
		name, ok := supplied[spec.Key]
		if !ok {
			continue
		}
		value, err := validateField(spec, raw[name], true)
		if err != nil {
			ve := invalidField(spec.Name, raw[name], err)
			if !v.Accumulate {
				return nil, ve
			}
			errs = append(errs, ve)
			continue
		}
		patch[spec.Key] = value
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return patch, nil
}

// FieldNames returns the external names of the fields in patch, in
// FieldSpecs order.
func (p Patch) FieldNames() []string {
	var names []string
	for _, spec := range FieldSpecs {
		if _, ok := p[spec.Key]; ok {
			names = append(names, spec.Name)
		}
	}
	return names
}

// suppliedPatientID returns the normalized patient_id from raw, "" when
// absent or blank, or an error when present but malformed.
func suppliedPatientID(raw RawRecord) (string, *ValidationError) {
	v, ok := raw[PatientIDName]
	if !ok {
		return "", nil
	}
	s, ok := rawString(v)
	if !ok {
		return "", invalidField(PatientIDName, v, errNotText)
	}
	s = NormalizePatientID(s)
	if s == "" {
		return "", nil
	}
	if !patientIDPattern.MatchString(s) {
		return "", &ValidationError{
			Field:   PatientIDName,
			Value:   s,
			Message: "must be 'P' followed by at least 5 digits",
			Kind:    ErrInvalidFieldValue,
		}
	}
	return s, nil
}

// NormalizePatientID trims and uppercases an identifier for lookup.
func NormalizePatientID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
