package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/contactimport/internal/contact"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists to a SQLite database. Contact documents are stored as
// JSON objects and matched with json_each.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database and creates the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS contact_fields (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		type TEXT NOT NULL,
		core INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS contacts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		data JSON NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS users (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ListFields returns fields in creation order.
func (s *SQLiteStore) ListFields(ctx context.Context) ([]contact.CustomFieldDef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, type, core FROM contact_fields ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fields []contact.CustomFieldDef
	for rows.Next() {
		var (
			f   contact.CustomFieldDef
			typ string
		)
		if err := rows.Scan(&f.ID, &f.Label, &typ, &f.Core); err != nil {
			return nil, err
		}
		f.Type = contact.FieldType(typ)
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// CreateField stores def under a new id.
func (s *SQLiteStore) CreateField(ctx context.Context, def contact.CustomFieldDef) (contact.CustomFieldDef, error) {
	if err := validateField(def); err != nil {
		return contact.CustomFieldDef{}, err
	}
	def.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_fields (id, label, type, core, created_at) VALUES (?, ?, ?, ?, ?)`,
		def.ID, def.Label, string(def.Type), def.Core, now(),
	)
	if err != nil {
		return contact.CustomFieldDef{}, fmt.Errorf("failed to insert field: %w", err)
	}
	return def, nil
}

// FindContacts matches documents holding key with exactly value.
func (s *SQLiteStore) FindContacts(ctx context.Context, key, value string) ([]contact.ContactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.data FROM contacts c
		WHERE EXISTS (
			SELECT 1 FROM json_each(c.data) j
			WHERE j.key = ? AND j.type = 'text' AND j.value = ?
		)
		ORDER BY c.seq`, key, value)
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []contact.ContactRecord
	for rows.Next() {
		rec, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateContact stores data under a new id.
func (s *SQLiteStore) CreateContact(ctx context.Context, data map[string]string) (contact.ContactRecord, error) {
	doc, err := json.Marshal(data)
	if err != nil {
		return contact.ContactRecord{}, fmt.Errorf("failed to encode contact: %w", err)
	}
	id := uuid.NewString()
	ts := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(doc), ts, ts,
	); err != nil {
		return contact.ContactRecord{}, fmt.Errorf("failed to insert contact: %w", err)
	}
	return contact.ContactRecord{ID: id, Data: copyData(data)}, nil
}

// MergeContact overwrites keys of record id inside one transaction.
func (s *SQLiteStore) MergeContact(ctx context.Context, id string, data map[string]string) (contact.ContactRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contact.ContactRecord{}, fmt.Errorf("failed to begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanContact(tx.QueryRowContext(ctx, `SELECT id, data FROM contacts WHERE id = ?`, id))
	if err != nil {
		return contact.ContactRecord{}, err
	}
	for k, v := range data {
		rec.Data[k] = v
	}
	doc, err := json.Marshal(rec.Data)
	if err != nil {
		return contact.ContactRecord{}, fmt.Errorf("failed to encode contact: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE contacts SET data = ?, updated_at = ? WHERE id = ?`,
		string(doc), now(), id,
	); err != nil {
		return contact.ContactRecord{}, fmt.Errorf("failed to update contact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return contact.ContactRecord{}, fmt.Errorf("failed to commit merge: %w", err)
	}
	return rec, nil
}

// GetContact returns record id.
func (s *SQLiteStore) GetContact(ctx context.Context, id string) (contact.ContactRecord, error) {
	return scanContact(s.db.QueryRowContext(ctx, `SELECT id, data FROM contacts WHERE id = ?`, id))
}

// ListContacts returns records in creation order.
func (s *SQLiteStore) ListContacts(ctx context.Context) ([]contact.ContactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM contacts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []contact.ContactRecord
	for rows.Next() {
		rec, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAgents returns agents in creation order.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]contact.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM users ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []contact.Agent
	for rows.Next() {
		var a contact.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// CreateAgent stores agent, assigning an id when it has none.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent contact.Agent) (contact.Agent, error) {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email) VALUES (?, ?, ?)`,
		agent.ID, agent.Name, agent.Email,
	); err != nil {
		return contact.Agent{}, fmt.Errorf("failed to insert agent: %w", err)
	}
	return agent, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (contact.ContactRecord, error) {
	var (
		id  string
		doc string
	)
	if err := row.Scan(&id, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contact.ContactRecord{}, fmt.Errorf("contact: %w", contact.ErrNotFound)
		}
		return contact.ContactRecord{}, fmt.Errorf("failed to scan contact: %w", err)
	}
	data := make(map[string]string)
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return contact.ContactRecord{}, fmt.Errorf("failed to decode contact %s: %w", id, err)
	}
	return contact.ContactRecord{ID: id, Data: data}, nil
}

var _ Store = (*SQLiteStore)(nil)
