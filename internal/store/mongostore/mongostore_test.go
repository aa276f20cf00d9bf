package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/JonMunkholm/patients/internal/core"
)

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		in   core.Filter
		want bson.M
	}{
		{"empty matches all", core.Filter{}, bson.M{}},
		{"by id", core.Filter{PatientID: "P00001"}, bson.M{"patient_id": "P00001"}},
		{
			"name is quoted",
			core.Filter{NameContains: "o'neil (jr.)"},
			bson.M{"name": bson.M{"$regex": `o'neil \(jr\.\)`, "$options": "i"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter(tt.in))
		})
	}
}

func TestConfig_ClientOptions(t *testing.T) {
	t.Run("discrete settings use SCRAM-SHA-256", func(t *testing.T) {
		opts := Config{
			Host:       "localhost",
			Port:       27017,
			User:       "app-user",
			Password:   "secret",
			AuthSource: "medical_db",
		}.ClientOptions()

		require.NotNil(t, opts.Auth)
		assert.Equal(t, AuthMechanism, opts.Auth.AuthMechanism)
		assert.Equal(t, "medical_db", opts.Auth.AuthSource)
		assert.Equal(t, []string{"localhost:27017"}, opts.Hosts)
	})

	t.Run("uri wins", func(t *testing.T) {
		opts := Config{URI: "mongodb://db.internal:27018", Host: "ignored", Port: 1}.ClientOptions()
		assert.Equal(t, []string{"db.internal:27018"}, opts.Hosts)
		assert.Nil(t, opts.Auth)
	})

	t.Run("timeout applied", func(t *testing.T) {
		opts := Config{Host: "localhost", Port: 27017, ConnectTimeout: 3 * time.Second}.ClientOptions()
		require.NotNil(t, opts.ConnectTimeout)
		assert.Equal(t, 3*time.Second, *opts.ConnectTimeout)
	})
}

func TestWrap(t *testing.T) {
	err := wrap("find", errors.New("boom"))
	assert.NotErrorIs(t, err, core.ErrStoreUnavailable)
	assert.EqualError(t, err, "find: boom")
}

// TestStore_Integration runs against a live server when
// PATIENTS_TEST_MONGO_URI is set.
func TestHighestIDPipeline(t *testing.T) {
	p := highestIDPipeline()
	require.Len(t, p, 3)

	project := p[0][0]
	assert.Equal(t, "$project", project.Key)
	assert.Contains(t, project.Value, bson.E{Key: "idLen", Value: bson.D{{Key: "$strLenBytes", Value: "$patient_id"}}})

	sort := p[1][0]
	assert.Equal(t, "$sort", sort.Key)
	assert.Equal(t, bson.D{{Key: "idLen", Value: -1}, {Key: "patient_id", Value: -1}}, sort.Value)

	assert.Equal(t, bson.E{Key: "$limit", Value: 1}, p[2][0])
}

func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("PATIENTS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PATIENTS_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{
		URI:            uri,
		Database:       "patients_test",
		Collection:     fmt.Sprintf("patients_%d", time.Now().UnixNano()),
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.coll.Drop(context.Background())
		_ = s.Close(context.Background())
	})

	require.NoError(t, s.DropAll(ctx))

	p := core.Patient{PatientID: "P99999", Name: "Bobby Jackson", Age: 30}
	require.NoError(t, s.InsertOne(ctx, p))
	assert.ErrorIs(t, s.InsertOne(ctx, p), core.ErrDuplicateIdentifier)

	inserted, failures, err := s.InsertMany(ctx, []core.Patient{
		{PatientID: "P100000", Name: "Leslie Terry"},
		{PatientID: "P99999", Name: "Clash"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, core.ErrDuplicateIdentifier)

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

	found, err := s.FindMany(ctx, core.Filter{NameContains: "JACK"}, 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.NotEmpty(t, found[0].ID)

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
	_, err = s.FindOne(ctx, core.Filter{PatientID: "P99999"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}
