package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// patientIDPrefix starts every patient identifier.
const patientIDPrefix = "P"

// FormatPatientID renders n as 'P' plus a zero-padded 5-digit number. Values
// above 99999 simply widen.
func FormatPatientID(n int) string {
	return fmt.Sprintf("%s%05d", patientIDPrefix, n)
}

// ParsePatientID extracts the numeric suffix of id. ok is false when id does
// not start with 'P' or the suffix is not a non-negative integer.
func ParsePatientID(id string) (n int, ok bool) {
	if !strings.HasPrefix(id, patientIDPrefix) {
		return 0, false
	}
	digits := id[len(patientIDPrefix):]
	if digits == "" || !isDigits(digits) {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// OrdinalPatientID is the identifier assigned to the row at index during a
// bulk load.
func OrdinalPatientID(index int) string {
	return FormatPatientID(index + 1)
}

// IsPatientIDTerm reports whether a search term looks like an identifier:
// 'P' or 'p' followed by one or more digits.
func IsPatientIDTerm(term string) bool {
	if len(term) < 2 || (term[0] != 'P' && term[0] != 'p') {
		return false
	}
	return isDigits(term[1:])
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// ComparePatientIDs orders identifiers by byte length, then bytewise. For
// well-formed identifiers this is numeric order, so P100000 follows P99999.
// It returns -1, 0 or +1 like strings.Compare.
func ComparePatientIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Allocator derives the next sequential identifier from the highest one in
// the store. Two allocators racing may hand out the same identifier; the
// store's uniqueness constraint turns that into ErrDuplicateIdentifier.
type Allocator struct {
	store  Store
	logger *slog.Logger
}

// NewAllocator creates an allocator reading from store.
func NewAllocator(store Store, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{store: store, logger: logger}
}

// Next returns the identifier following the highest stored one. An empty
// store yields P00001. A malformed stored identifier restarts the sequence
// at P00001 and is logged as an anomaly. A store error is returned as is.
func (a *Allocator) Next(ctx context.Context) (string, error) {
	last, err := a.store.HighestPatientID(ctx)
	if err != nil {
		return "", fmt.Errorf("read highest patient_id: %w", err)
	}
	if last == "" {
		return FormatPatientID(1), nil
	}

	n, ok := ParsePatientID(last)
	if !ok {
		a.logger.Warn("malformed stored patient_id, restarting sequence",
			"patient_id", last,
		)
		n = 0
	}
	return FormatPatientID(n + 1), nil
}
