// Package pgstore implements core.Store on a PostgreSQL table holding one
// JSONB document per patient.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/patients/internal/core"
)

// Table is the name of the patient table.
const Table = "patients"

const schema = `
CREATE TABLE IF NOT EXISTS patients (
    seq        BIGSERIAL PRIMARY KEY,
    patient_id TEXT NOT NULL UNIQUE,
    doc        JSONB NOT NULL
)`

const uniqueViolation = "23505"

// Config holds pool settings.
type Config struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Open creates the pool, pings and creates the table if needed. Connection
// failures wrap core.ErrStoreUnavailable.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", core.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", core.ErrStoreUnavailable, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, wrap("create table", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool. The table must already exist.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) FindOne(ctx context.Context, f core.Filter) (*core.Patient, error) {
	where, args := whereClause(f)
	row := s.pool.QueryRow(ctx, "SELECT seq, doc FROM patients"+where+" ORDER BY seq LIMIT 1", args...)

	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, wrap("find one", err)
	}
	return p, nil
}

func (s *Store) FindMany(ctx context.Context, f core.Filter, limit int) ([]core.Patient, error) {
	where, args := whereClause(f)
	query := "SELECT seq, doc FROM patients" + where + " ORDER BY seq"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("find", err)
	}
	defer rows.Close()

	ps := make([]core.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, wrap("scan", err)
		}
		ps = append(ps, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("find", err)
	}
	return ps, nil
}

// highestIDQuery matches core.ComparePatientIDs: byte length, then bytes.
const highestIDQuery = `SELECT patient_id FROM patients
ORDER BY octet_length(patient_id) DESC, patient_id COLLATE "C" DESC LIMIT 1`

func (s *Store) HighestPatientID(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, highestIDQuery).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", wrap("highest patient_id", err)
	}
	return id, nil
}

func (s *Store) InsertOne(ctx context.Context, p core.Patient) error {
	doc, err := encodeDoc(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, "INSERT INTO patients (patient_id, doc) VALUES ($1, $2)", p.PatientID, doc)
	if isUniqueViolation(err) {
		return core.ErrDuplicateIdentifier
	}
	if err != nil {
		return wrap("insert", err)
	}
	return nil
}

// InsertMany tries a single COPY first. If the COPY fails, typically on a
// duplicate patient_id, the batch is retried row by row inside one
// transaction with a savepoint per row, and the failing rows are reported.
func (s *Store) InsertMany(ctx context.Context, ps []core.Patient) (int, []core.InsertError, error) {
	if len(ps) == 0 {
		return 0, nil, nil
	}

	rows := make([][]any, len(ps))
	for i, p := range ps {
		doc, err := encodeDoc(p)
		if err != nil {
			return 0, nil, err
		}
		rows[i] = []any{p.PatientID, doc}
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{Table}, []string{"patient_id", "doc"}, pgx.CopyFromRows(rows))
	if err == nil {
		return int(n), nil, nil
	}
	if ctx.Err() != nil {
		return 0, nil, wrap("copy", err)
	}

	return s.insertRows(ctx, ps, rows)
}

func (s *Store) insertRows(ctx context.Context, ps []core.Patient, rows [][]any) (int, []core.InsertError, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, nil, wrap("begin", err)
	}
	defer tx.Rollback(ctx)

	var failures []core.InsertError
	inserted := 0
	for i, row := range rows {
		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return 0, nil, wrap("savepoint", err)
		}

		_, err := tx.Exec(ctx, "INSERT INTO patients (patient_id, doc) VALUES ($1, $2)", row...)
		if err != nil {
			_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
			ie := core.InsertError{Index: i, PatientID: ps[i].PatientID, Err: err}
			if isUniqueViolation(err) {
				ie.Err = core.ErrDuplicateIdentifier
			}
			failures = append(failures, ie)
			continue
		}
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, wrap("commit", err)
	}
	return inserted, failures, nil
}

// UpdateOne merges patch into the document. A row whose document already
// contains every patched value is left alone and counts as not modified.
func (s *Store) UpdateOne(ctx context.Context, patientID string, patch core.Patch) (int64, error) {
	delta, err := json.Marshal(patch)
	if err != nil {
		return 0, fmt.Errorf("encode patch: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE patients SET doc = doc || $2::jsonb WHERE patient_id = $1 AND NOT doc @> $2::jsonb",
		patientID, delta,
	)
	if err != nil {
		return 0, wrap("update", err)
	}
	if tag.RowsAffected() > 0 {
		return tag.RowsAffected(), nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)", patientID,
	).Scan(&exists); err != nil {
		return 0, wrap("update", err)
	}
	if !exists {
		return 0, core.ErrNotFound
	}
	return 0, nil
}

func (s *Store) DeleteOne(ctx context.Context, patientID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM patients WHERE patient_id = $1", patientID)
	if err != nil {
		return 0, wrap("delete", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Count(ctx context.Context, f core.Filter) (int64, error) {
	where, args := whereClause(f)
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM patients"+where, args...).Scan(&n); err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// DropAll empties the table. The unique constraint stays in place.
func (s *Store) DropAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE patients RESTART IDENTITY"); err != nil {
		return wrap("truncate", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// whereClause builds a WHERE clause with positional arguments for f.
func whereClause(f core.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.PatientID != "" {
		args = append(args, f.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.NameContains != "" {
		args = append(args, "%"+escapeLike(f.NameContains)+"%")
		conds = append(conds, fmt.Sprintf("doc->>'name' ILIKE $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike makes LIKE wildcards in s match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func encodeDoc(p core.Patient) ([]byte, error) {
	p.ID = ""
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.PatientID, err)
	}
	return doc, nil
}

func scanPatient(row pgx.Row) (*core.Patient, error) {
	var seq int64
	var doc []byte
	if err := row.Scan(&seq, &doc); err != nil {
		return nil, err
	}
	var p core.Patient
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode patient %d: %w", seq, err)
	}
	p.ID = strconv.FormatInt(seq, 10)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// wrap marks connectivity failures as core.ErrStoreUnavailable.
func wrap(op string, err error) error {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %s: %v", core.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
