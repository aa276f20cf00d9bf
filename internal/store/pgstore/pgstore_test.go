package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/patients/internal/core"
)

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name      string
		in        core.Filter
		wantWhere string
		wantArgs  []any
	}{
		{"empty", core.Filter{}, "", nil},
		{"by id", core.Filter{PatientID: "P00001"}, " WHERE patient_id = $1", []any{"P00001"}},
		{"by name", core.Filter{NameContains: "smith"}, " WHERE doc->>'name' ILIKE $1", []any{"%smith%"}},
		{
			"both",
			core.Filter{PatientID: "P00001", NameContains: "a"},
			" WHERE patient_id = $1 AND doc->>'name' ILIKE $2",
			[]any{"P00001", "%a%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := whereClause(tt.in)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_x\\`, escapeLike(`100% _x\`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestEncodeDoc_DropsID(t *testing.T) {
	doc, err := encodeDoc(core.Patient{ID: "7", PatientID: "P00001", Name: "Bobby Jackson"})
	require.NoError(t, err)
	assert.NotContains(t, string(doc), `"_id"`)
	assert.Contains(t, string(doc), `"patient_id":"P00001"`)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23502"}))
	assert.False(t, isUniqueViolation(errors.New("23505")))
	assert.False(t, isUniqueViolation(nil))
}

func TestWrap(t *testing.T) {
	err := wrap("count", errors.New("syntax error"))
	assert.NotErrorIs(t, err, core.ErrStoreUnavailable)
	assert.EqualError(t, err, "count: syntax error")
}

// TestStore_Integration runs against a live server when
// PATIENTS_TEST_DATABASE_URL is set. The patients table is truncated.
func TestHighestIDQuery(t *testing.T) {
	assert.Contains(t, highestIDQuery, "octet_length(patient_id) DESC")
	assert.Contains(t, highestIDQuery, `patient_id COLLATE "C" DESC`)
}

func TestStore_Integration(t *testing.T) {
	url := os.Getenv("PATIENTS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PATIENTS_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.DropAll(ctx))

	admitted := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	p := core.Patient{PatientID: "P99999", Name: "Bobby Jackson", Age: 30, DateOfAdmission: admitted}
	require.NoError(t, s.InsertOne(ctx, p))
	assert.ErrorIs(t, s.InsertOne(ctx, p), core.ErrDuplicateIdentifier)

	t.Run("copy path", func(t *testing.T) {
		inserted, failures, err := s.InsertMany(ctx, []core.Patient{
			{PatientID: "P00001", Name: "Leslie Terry"},
			{PatientID: "P00002", Name: "Danny Smith"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)
		assert.Empty(t, failures)
	})

	t.Run("savepoint fallback", func(t *testing.T) {
		inserted, failures, err := s.InsertMany(ctx, []core.Patient{
			{PatientID: "P100000", Name: "Andrew Watts"},
			{PatientID: "P99999", Name: "Clash"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)
		require.Len(t, failures, 1)
		assert.Equal(t, 1, failures[0].Index)
		assert.ErrorIs(t, failures[0].Err, core.ErrDuplicateIdentifier)
	})

	highest, err := s.HighestPatientID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P100000", highest)

	require.NoError(t, s.InsertOne(ctx, core.Patient{PatientID: "Pabc", Name: "Malformed"}))
	highest, err = s.HighestPatientID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P100000", highest)
	n, err := s.DeleteOne(ctx, "Pabc")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	found, err := s.FindOne(ctx, core.Filter{PatientID: "P99999"})
	require.NoError(t, err)
	assert.NotEmpty(t, found.ID)
	assert.True(t, found.DateOfAdmission.Equal(admitted))

	matches, err := s.FindMany(ctx, core.Filter{NameContains: "SMITH"}, 20)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "P00002", matches[0].PatientID)

	n, err = s.UpdateOne(ctx, "P99999", core.Patch{core.KeyAge: 31})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.UpdateOne(ctx, "P99999", core.Patch{core.KeyAge: 31})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	_, err = s.UpdateOne(ctx, "P00000", core.Patch{core.KeyAge: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)

	n, err = s.DeleteOne(ctx, "P99999")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := s.Count(ctx, core.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
