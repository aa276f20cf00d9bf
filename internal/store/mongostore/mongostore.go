// Package mongostore implements core.Store on a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JonMunkholm/patients/internal/core"
)

// AuthMechanism is used when credentials are given as discrete settings.
const AuthMechanism = "SCRAM-SHA-256"

const duplicateKeyCode = 11000

// Config locates the collection. URI wins over Host/Port/User/Password.
type Config struct {
	URI            string
	Host           string
	Port           int
	User           string
	Password       string
	AuthSource     string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// ClientOptions builds the driver options for c.
func (c Config) ClientOptions() *options.ClientOptions {
	opts := options.Client()
	if c.URI != "" {
		opts.ApplyURI(c.URI)
	} else {
		opts.ApplyURI("mongodb://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
		if c.User != "" {
			opts.SetAuth(options.Credential{
				AuthMechanism: AuthMechanism,
				AuthSource:    c.AuthSource,
				Username:      c.User,
				Password:      c.Password,
			})
		}
	}
	if c.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.ConnectTimeout)
		opts.SetServerSelectionTimeout(c.ConnectTimeout)
	}
	return opts
}

// Store is a core.Store backed by one collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ core.Store = (*Store)(nil)

// Open connects, pings and ensures the unique patient_id index. Any failure
// wraps core.ErrStoreUnavailable.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, cfg.ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", core.ErrStoreUnavailable, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %v", core.ErrStoreUnavailable, err)
	}

	s := &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: core.KeyPatientID, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("patient_id_unique"),
	})
	if err != nil {
		return wrap("create patient_id index", err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, f core.Filter) (*core.Patient, error) {
	var p core.Patient
	err := s.coll.FindOne(ctx, filter(f)).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, wrap("find one", err)
	}
	return &p, nil
}

func (s *Store) FindMany(ctx context.Context, f core.Filter, limit int) ([]core.Patient, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, filter(f), opts)
	if err != nil {
		return nil, wrap("find", err)
	}
	ps := make([]core.Patient, 0)
	if err := cur.All(ctx, &ps); err != nil {
		return nil, wrap("decode", err)
	}
	return ps, nil
}

// highestIDPipeline matches core.ComparePatientIDs: byte length, then the
// default binary string order.
func highestIDPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$project", Value: bson.D{
			{Key: core.KeyPatientID, Value: 1},
			{Key: "idLen", Value: bson.D{{Key: "$strLenBytes", Value: "$" + core.KeyPatientID}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "idLen", Value: -1}, {Key: core.KeyPatientID, Value: -1}}}},
		{{Key: "$limit", Value: 1}},
	}
}

func (s *Store) HighestPatientID(ctx context.Context) (string, error) {
	cur, err := s.coll.Aggregate(ctx, highestIDPipeline())
	if err != nil {
		return "", wrap("highest patient_id", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return "", wrap("highest patient_id", err)
		}
		return "", nil
	}
	var doc struct {
		PatientID string `bson:"patient_id"`
	}
	if err := cur.Decode(&doc); err != nil {
		return "", wrap("highest patient_id", err)
	}
	return doc.PatientID, nil
}

func (s *Store) InsertOne(ctx context.Context, p core.Patient) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.ErrDuplicateIdentifier
		}
		return wrap("insert", err)
	}
	return nil
}

// InsertMany inserts unordered, so one bad document does not stop the rest.
func (s *Store) InsertMany(ctx context.Context, ps []core.Patient) (int, []core.InsertError, error) {
	if len(ps) == 0 {
		return 0, nil, nil
	}
	docs := make([]any, len(ps))
	for i, p := range ps {
		docs[i] = p
	}

	_, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return len(ps), nil, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
		return 0, nil, wrap("insert many", err)
	}

	failures := make([]core.InsertError, 0, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		ie := core.InsertError{Index: we.Index, Err: errors.New(we.Message)}
		if we.Index >= 0 && we.Index < len(ps) {
			ie.PatientID = ps[we.Index].PatientID
		}
		if we.Code == duplicateKeyCode {
			ie.Err = core.ErrDuplicateIdentifier
		}
		failures = append(failures, ie)
	}
	return len(ps) - len(failures), failures, nil
}

func (s *Store) UpdateOne(ctx context.Context, patientID string, patch core.Patch) (int64, error) {
	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{core.KeyPatientID: patientID}, bson.M{"$set": set})
	if err != nil {
		return 0, wrap("update", err)
	}
	if res.MatchedCount == 0 {
		return 0, core.ErrNotFound
	}
	return res.ModifiedCount, nil
}

func (s *Store) DeleteOne(ctx context.Context, patientID string) (int64, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{core.KeyPatientID: patientID})
	if err != nil {
		return 0, wrap("delete", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Count(ctx context.Context, f core.Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, filter(f))
	if err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// DropAll drops the collection and recreates the unique index.
func (s *Store) DropAll(ctx context.Context) error {
	if err := s.coll.Drop(ctx); err != nil {
		return wrap("drop", err)
	}
	return s.ensureIndexes(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// filter translates f to a query document. The name term is matched
// literally, case-insensitively.
func filter(f core.Filter) bson.M {
	q := bson.M{}
	if f.PatientID != "" {
		q[core.KeyPatientID] = f.PatientID
	}
	if f.NameContains != "" {
		q[core.KeyName] = bson.M{"$regex": regexp.QuoteMeta(f.NameContains), "$options": "i"}
	}
	return q
}

// wrap marks connectivity failures as core.ErrStoreUnavailable.
func wrap(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %s: %v", core.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
