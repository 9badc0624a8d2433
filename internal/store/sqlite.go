package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/swasya-health/capture-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS patients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL DEFAULT '',
	age        INTEGER NOT NULL DEFAULT 0,
	gender     TEXT NOT NULL DEFAULT '',
	village    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS history_entries (
	patient_id      TEXT NOT NULL REFERENCES patients(id),
	ts              INTEGER NOT NULL,
	schema_kind     TEXT NOT NULL,
	status          TEXT NOT NULL,
	payload         TEXT NOT NULL,
	transcript_text TEXT NOT NULL DEFAULT '',
	source_artifact TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	PRIMARY KEY (patient_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_history_entries_schema ON history_entries(patient_id, schema_kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreatePatient(ctx context.Context, p *model.Patient) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (id, name, phone, age, gender, village, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Phone, p.Age, p.Gender, p.Village, p.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert patient %s", p.ID)
}

func (s *SQLiteStore) GetPatient(ctx context.Context, patientID string) (*model.Patient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, age, gender, village, created_at FROM patients WHERE id = ?`,
		patientID,
	)

	var p model.Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Age, &p.Gender, &p.Village, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get patient %s", patientID)
	}
	return &p, nil
}

func (s *SQLiteStore) ListPatients(ctx context.Context, limit int) ([]model.Patient, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, age, gender, village, created_at FROM patients ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list patients")
	}
	defer rows.Close()

	var patients []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Age, &p.Gender, &p.Village, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan patient")
		}
		patients = append(patients, p)
	}
	return patients, eris.Wrap(rows.Err(), "sqlite: list patients iterate")
}

func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *model.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_entries (patient_id, ts, schema_kind, status, payload, transcript_text, source_artifact, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (patient_id, ts) DO UPDATE SET
			schema_kind = excluded.schema_kind,
			status = excluded.status,
			payload = excluded.payload,
			transcript_text = excluded.transcript_text,
			source_artifact = excluded.source_artifact,
			created_at = excluded.created_at`,
		entry.PatientID, entry.Timestamp, string(entry.SchemaKind), string(entry.Status),
		string(entry.Payload), entry.TranscriptText, entry.SourceArtifact, entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append entry %s@%d", entry.PatientID, entry.Timestamp)
}

func (s *SQLiteStore) ListEntries(ctx context.Context, patientID string, limit int) ([]model.HistoryEntry, error) {
	query := `SELECT patient_id, ts, schema_kind, status, payload, transcript_text, source_artifact, created_at
		 FROM history_entries WHERE patient_id = ? ORDER BY ts ASC`
	args := []any{patientID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list entries for %s", patientID)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list entries iterate")
}

func (s *SQLiteStore) LatestEntry(ctx context.Context, patientID string) (*model.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT patient_id, ts, schema_kind, status, payload, transcript_text, source_artifact, created_at
		 FROM history_entries WHERE patient_id = ? ORDER BY ts DESC LIMIT 1`,
		patientID,
	)

	e, err := scanEntry(row)
	if err != nil {
		if eris.Is(err, errNoEntry) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// helpers

var errNoEntry = eris.New("entry not found")

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.HistoryEntry, error) {
	var e model.HistoryEntry
	var schemaKind, status, payload string

	err := row.Scan(&e.PatientID, &e.Timestamp, &schemaKind, &status, &payload, &e.TranscriptText, &e.SourceArtifact, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errNoEntry
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan entry")
	}

	e.SchemaKind = model.SchemaKind(schemaKind)
	e.Status = model.EntryStatus(status)
	e.Payload = []byte(payload)
	return &e, nil
}
