// Package store holds custom field definitions, contact records and the
// agent directory.
//
// Two implementations exist: MemoryStore for tests and one-shot CLI runs,
// and SQLiteStore for persistence. Each operation is atomic on its own;
// nothing spans a lookup and a later write.
package store

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// FieldStore reads and creates custom field definitions.
type FieldStore interface {
	ListFields(ctx context.Context) ([]contact.CustomFieldDef, error)
	// CreateField stores def under a new id and returns it with the id set.
	CreateField(ctx context.Context, def contact.CustomFieldDef) (contact.CustomFieldDef, error)
}

// ContactStore reads and writes contact records.
type ContactStore interface {
	// FindContacts returns records whose attribute key equals value
	// exactly, oldest first.
	FindContacts(ctx context.Context, key, value string) ([]contact.ContactRecord, error)
	CreateContact(ctx context.Context, data map[string]string) (contact.ContactRecord, error)
	// MergeContact overwrites the given keys of an existing record and
	// leaves its other keys untouched.
	MergeContact(ctx context.Context, id string, data map[string]string) (contact.ContactRecord, error)
	GetContact(ctx context.Context, id string) (contact.ContactRecord, error)
	ListContacts(ctx context.Context) ([]contact.ContactRecord, error)
}

// AgentStore holds the users that agentUid values resolve to.
type AgentStore interface {
	ListAgents(ctx context.Context) ([]contact.Agent, error)
	CreateAgent(ctx context.Context, agent contact.Agent) (contact.Agent, error)
}

// Store is the full schema store.
type Store interface {
	FieldStore
	ContactStore
	AgentStore
	Close() error
}

// Open returns the store for driver: "memory" or "sqlite".
func Open(driver, sqlitePath string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func validateField(def contact.CustomFieldDef) error {
	if def.Core {
		return fmt.Errorf("core attribute %q cannot be stored as a field", def.Label)
	}
	return def.Validate()
}
