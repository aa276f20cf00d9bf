package core

import (
	"context"
	"strconv"
	"time"
)

// DateLayout is the only accepted date format for admission and discharge dates.
const DateLayout = "2006-01-02"

// RawRecord is an untrusted record as received from a CSV row, a JSON body
// or CLI flags. Keys are external field names ("Blood Type"); values are
// strings or numbers.
type RawRecord map[string]any

// Patient is the canonical, validated record. It is the only form ever
// persisted.
type Patient struct {
	ID                string    `bson:"_id,omitempty" json:"_id,omitempty"`
	PatientID         string    `bson:"patient_id" json:"patient_id"`
	Name              string    `bson:"name" json:"name"`
	Age               int       `bson:"age" json:"age"`
	Gender            string    `bson:"gender" json:"gender"`
	BloodType         string    `bson:"blood_type" json:"blood_type"`
	MedicalCondition  string    `bson:"medical_condition" json:"medical_condition"`
	DateOfAdmission   time.Time `bson:"date_of_admission" json:"date_of_admission"`
	Doctor            string    `bson:"doctor" json:"doctor"`
	Hospital          string    `bson:"hospital" json:"hospital"`
	InsuranceProvider string    `bson:"insurance_provider" json:"insurance_provider"`
	BillingAmount     float64   `bson:"billing_amount" json:"billing_amount"`
	RoomNumber        int       `bson:"room_number" json:"room_number"`
	AdmissionType     string    `bson:"admission_type" json:"admission_type"`
	DischargeDate     time.Time `bson:"discharge_date" json:"discharge_date"`
	Medication        string    `bson:"medication" json:"medication"`
	TestResults       string    `bson:"test_results" json:"test_results"`
}

// Patch is a validated partial update keyed by document key
// ("billing_amount"). Values carry the canonical Go type of the field.
type Patch map[string]any

// Filter selects patients. Zero-valued fields are ignored; an empty Filter
// matches every record.
type Filter struct {
	PatientID    string // exact match
	NameContains string // case-insensitive substring of name
}

// InsertError describes one record rejected by Store.InsertMany.
type InsertError struct {
	Index     int // position in the slice passed to InsertMany
	PatientID string
	Err       error
}

// Store is the persistence surface the repository needs. Implementations
// must enforce uniqueness of patient_id and return ErrDuplicateIdentifier
// when it is violated.
type Store interface {
	// FindOne returns the first match or ErrNotFound.
	FindOne(ctx context.Context, f Filter) (*Patient, error)
	// FindMany returns matches in the store's natural order. limit <= 0 means no limit.
	FindMany(ctx context.Context, f Filter, limit int) ([]Patient, error)
	// HighestPatientID returns the greatest stored patient_id under
	// ComparePatientIDs, or "" when empty. Every backend uses that ordering
	// so the allocator sees the same identifier whatever the store.
	HighestPatientID(ctx context.Context) (string, error)
	InsertOne(ctx context.Context, p Patient) error
	// InsertMany keeps going after individual failures and reports them.
	InsertMany(ctx context.Context, ps []Patient) (int, []InsertError, error)
	// UpdateOne applies patch to the record with the given patient_id and
	// returns the number of modified records (0 when values were identical).
	// Returns ErrNotFound if no record matches.
	UpdateOne(ctx context.Context, patientID string, patch Patch) (int64, error)
	// DeleteOne removes the record and returns the number deleted.
	DeleteOne(ctx context.Context, patientID string) (int64, error)
	Count(ctx context.Context, f Filter) (int64, error)
	// DropAll removes every record, keeping the uniqueness constraint.
	DropAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// UpdateOutcome distinguishes an applied update from one that left the
// stored record unchanged.
type UpdateOutcome string

const (
	UpdateApplied UpdateOutcome = "applied"
	UpdateNoOp    UpdateOutcome = "no-op"
)

// AddResult is returned by a successful Repository.Add.
type AddResult struct {
	PatientID string `json:"patient_id"`
	Name      string `json:"name"`
}

// UpdateResult is returned by a successful Repository.Update.
type UpdateResult struct {
	PatientID string        `json:"patient_id"`
	Outcome   UpdateOutcome `json:"outcome"`
	Fields    []string      `json:"fields"`
}

// RowRejection records a bulk-load row that failed validation.
type RowRejection struct {
	Line      int    `json:"line"` // 1-indexed data row
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
}

// LoadSummary is the result of a bulk load.
type LoadSummary struct {
	LoadID   string         `json:"load_id"`
	Rows     int            `json:"rows"`
	Valid    int            `json:"valid"`
	Batches  int            `json:"batches"`
	Count    int64          `json:"count"` // records present after the load
	Rejected []RowRejection `json:"rejected,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Apply copies the values in patch onto p. Unknown keys are ignored; patches
// produced by Validator.ValidatePatch only carry known keys.
func (p *Patient) Apply(patch Patch) {
	for key, v := range patch {
		p.set(key, v)
	}
}

func (p *Patient) set(key string, v any) {
	switch key {
	case KeyName:
		p.Name, _ = v.(string)
	case KeyAge:
		p.Age, _ = v.(int)
	case KeyGender:
		p.Gender, _ = v.(string)
	case KeyBloodType:
		p.BloodType, _ = v.(string)
	case KeyMedicalCondition:
		p.MedicalCondition, _ = v.(string)
	case KeyDateOfAdmission:
		p.DateOfAdmission, _ = v.(time.Time)
	case KeyDoctor:
		p.Doctor, _ = v.(string)
	case KeyHospital:
		p.Hospital, _ = v.(string)
	case KeyInsuranceProvider:
		p.InsuranceProvider, _ = v.(string)
	case KeyBillingAmount:
		p.BillingAmount, _ = v.(float64)
	case KeyRoomNumber:
		p.RoomNumber, _ = v.(int)
	case KeyAdmissionType:
		p.AdmissionType, _ = v.(string)
	case KeyDischargeDate:
		p.DischargeDate, _ = v.(time.Time)
	case KeyMedication:
		p.Medication, _ = v.(string)
	case KeyTestResults:
		p.TestResults, _ = v.(string)
	}
}

// Raw renders p back into a RawRecord keyed by external names, with dates
// in DateLayout. Validating the result yields p again, minus ID.
func (p Patient) Raw() RawRecord {
	return RawRecord{
		PatientIDName:        p.PatientID,
		"Name":               p.Name,
		"Age":                strconv.Itoa(p.Age),
		"Gender":             p.Gender,
		"Blood Type":         p.BloodType,
		"Medical Condition":  p.MedicalCondition,
		"Date of Admission":  p.DateOfAdmission.Format(DateLayout),
		"Doctor":             p.Doctor,
		"Hospital":           p.Hospital,
		"Insurance Provider": p.InsuranceProvider,
		"Billing Amount":     strconv.FormatFloat(p.BillingAmount, 'f', -1, 64),
		"Room Number":        strconv.Itoa(p.RoomNumber),
		"Admission Type":     p.AdmissionType,
		"Discharge Date":     p.DischargeDate.Format(DateLayout),
		"Medication":         p.Medication,
		"Test Results":       p.TestResults,
	}
}
