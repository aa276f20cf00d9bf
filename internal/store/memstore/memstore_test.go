package memstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/patients/internal/core"
)

func patient(id, name string) core.Patient {
	return core.Patient{PatientID: id, Name: name, Age: 30}
}

func TestStore_UniquePatientID(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertOne(ctx, patient("P00001", "Ann")))
	err := s.InsertOne(ctx, patient("P00001", "Bob"))
	assert.ErrorIs(t, err, core.ErrDuplicateIdentifier)

	n, err := s.Count(ctx, core.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_InsertManyContinuesOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertOne(ctx, patient("P00002", "Existing")))

	inserted, failures, err := s.InsertMany(ctx, []core.Patient{
		patient("P00001", "Ann"),
		patient("P00002", "Clash"),
		patient("P00003", "Cid"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, "P00002", failures[0].PatientID)
	assert.ErrorIs(t, failures[0].Err, core.ErrDuplicateIdentifier)
}

func TestStore_FindManyOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 1; i <= 30; i++ {
		require.NoError(t, s.InsertOne(ctx, patient(core.FormatPatientID(i), fmt.Sprintf("Johnson %d", i))))
	}
	require.NoError(t, s.InsertOne(ctx, patient("P00031", "Mary")))

	got, err := s.FindMany(ctx, core.Filter{NameContains: "JOHN"}, 20)
	require.NoError(t, err)
	require.Len(t, got, 20)
	assert.Equal(t, "P00001", got[0].PatientID)
	assert.Equal(t, "P00020", got[19].PatientID)

	all, err := s.FindMany(ctx, core.Filter{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 31)
}

func TestStore_HighestPatientIDIsNumeric(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.HighestPatientID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	for _, id := range []string{"P99999", "P100000", "P00005"} {
		require.NoError(t, s.InsertOne(ctx, patient(id, "x")))
	}
	id, err = s.HighestPatientID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P100000", id)
}

func TestStore_HighestPatientIDIgnoresShortMalformed(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"Pabc", "P00042"} {
		require.NoError(t, s.InsertOne(ctx, patient(id, "x")))
	}

	id, err := s.HighestPatientID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P00042", id)

	next, err := core.NewAllocator(s, nil).Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P00043", next)
}

func TestStore_UpdateReportsModified(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertOne(ctx, patient("P00001", "Ann")))

	n, err := s.UpdateOne(ctx, "P00001", core.Patch{core.KeyAge: 46})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.UpdateOne(ctx, "P00001", core.Patch{core.KeyAge: 46})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = s.UpdateOne(ctx, "P09999", core.Patch{core.KeyAge: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_DeleteKeepsIndex(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.InsertOne(ctx, patient(core.FormatPatientID(i), "x")))
	}

	n, err := s.DeleteOne(ctx, "P00001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	p, err := s.FindOne(ctx, core.Filter{PatientID: "P00003"})
	require.NoError(t, err)
	assert.Equal(t, "P00003", p.PatientID)

	n, err = s.DeleteOne(ctx, "P00001")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestStore_DropAll(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertOne(ctx, patient("P00001", "Ann")))
	require.NoError(t, s.DropAll(ctx))

	n, err := s.Count(ctx, core.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	// uniqueness still enforced after a drop
	require.NoError(t, s.InsertOne(ctx, patient("P00001", "Ann")))
	assert.ErrorIs(t, s.InsertOne(ctx, patient("P00001", "Ann")), core.ErrDuplicateIdentifier)
}
