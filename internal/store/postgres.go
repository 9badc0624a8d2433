package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/swasya-health/capture-pipeline/internal/db"
	"github.com/swasya-health/capture-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS patients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL DEFAULT '',
	age        INTEGER NOT NULL DEFAULT 0,
	gender     TEXT NOT NULL DEFAULT '',
	village    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS history_entries (
	patient_id      TEXT NOT NULL REFERENCES patients(id),
	ts              BIGINT NOT NULL,
	schema_kind     TEXT NOT NULL,
	status          TEXT NOT NULL,
	payload         JSONB NOT NULL,
	transcript_text TEXT NOT NULL DEFAULT '',
	source_artifact TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	PRIMARY KEY (patient_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_history_entries_schema ON history_entries(patient_id, schema_kind);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreatePatient(ctx context.Context, p *model.Patient) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO patients (id, name, phone, age, gender, village, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Phone, p.Age, p.Gender, p.Village, p.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert patient %s", p.ID)
}

func (s *PostgresStore) GetPatient(ctx context.Context, patientID string) (*model.Patient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, phone, age, gender, village, created_at FROM patients WHERE id = $1`,
		patientID,
	)

	var p model.Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Age, &p.Gender, &p.Village, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get patient %s", patientID)
	}
	return &p, nil
}

func (s *PostgresStore) ListPatients(ctx context.Context, limit int) ([]model.Patient, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, phone, age, gender, village, created_at FROM patients ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list patients")
	}
	defer rows.Close()

	var patients []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Age, &p.Gender, &p.Village, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan patient")
		}
		patients = append(patients, p)
	}
	return patients, eris.Wrap(rows.Err(), "postgres: list patients iterate")
}

func (s *PostgresStore) AppendEntry(ctx context.Context, entry *model.HistoryEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO history_entries (patient_id, ts, schema_kind, status, payload, transcript_text, source_artifact, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (patient_id, ts) DO UPDATE SET
			schema_kind = EXCLUDED.schema_kind,
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			transcript_text = EXCLUDED.transcript_text,
			source_artifact = EXCLUDED.source_artifact,
			created_at = EXCLUDED.created_at`,
		entry.PatientID, entry.Timestamp, string(entry.SchemaKind), string(entry.Status),
		[]byte(entry.Payload), entry.TranscriptText, entry.SourceArtifact, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append entry %s@%d", entry.PatientID, entry.Timestamp)
}

func (s *PostgresStore) ListEntries(ctx context.Context, patientID string, limit int) ([]model.HistoryEntry, error) {
	query := `SELECT patient_id, ts, schema_kind, status, payload, transcript_text, source_artifact, created_at
		 FROM history_entries WHERE patient_id = $1 ORDER BY ts ASC`
	args := []any{patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list entries for %s", patientID)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		e, err := scanPgEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list entries iterate")
}

func (s *PostgresStore) LatestEntry(ctx context.Context, patientID string) (*model.HistoryEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT patient_id, ts, schema_kind, status, payload, transcript_text, source_artifact, created_at
		 FROM history_entries WHERE patient_id = $1 ORDER BY ts DESC LIMIT 1`,
		patientID,
	)

	e, err := scanPgEntry(row)
	if err != nil {
		if eris.Is(err, errNoEntry) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func scanPgEntry(row scannable) (*model.HistoryEntry, error) {
	var e model.HistoryEntry
	var schemaKind, status string
	var payload []byte

	err := row.Scan(&e.PatientID, &e.Timestamp, &schemaKind, &status, &payload, &e.TranscriptText, &e.SourceArtifact, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errNoEntry
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan entry")
	}

	e.SchemaKind = model.SchemaKind(schemaKind)
	e.Status = model.EntryStatus(status)
	e.Payload = payload
	return &e, nil
}
