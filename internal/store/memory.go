package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	fields   []contact.CustomFieldDef
	contacts map[string]map[string]string
	order    []string
	agents   []contact.Agent
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contacts: make(map[string]map[string]string)}
}

// ListFields returns fields in creation order.
func (m *MemoryStore) ListFields(ctx context.Context) ([]contact.CustomFieldDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]contact.CustomFieldDef(nil), m.fields...), nil
}

// CreateField stores def under a new id.
func (m *MemoryStore) CreateField(ctx context.Context, def contact.CustomFieldDef) (contact.CustomFieldDef, error) {
	if err := validateField(def); err != nil {
		return contact.CustomFieldDef{}, err
	}
	def.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = append(m.fields, def)
	return def, nil
}

// FindContacts scans records in creation order.
func (m *MemoryStore) FindContacts(ctx context.Context, key, value string) ([]contact.ContactRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []contact.ContactRecord
	for _, id := range m.order {
		data := m.contacts[id]
		if v, ok := data[key]; ok && v == value {
			out = append(out, contact.ContactRecord{ID: id, Data: copyData(data)})
		}
	}
	return out, nil
}

// CreateContact stores data under a new id.
func (m *MemoryStore) CreateContact(ctx context.Context, data map[string]string) (contact.ContactRecord, error) {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[id] = copyData(data)
	m.order = append(m.order, id)
	return contact.ContactRecord{ID: id, Data: copyData(data)}, nil
}

// MergeContact overwrites keys of record id.
func (m *MemoryStore) MergeContact(ctx context.Context, id string, data map[string]string) (contact.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.contacts[id]
	if !ok {
		return contact.ContactRecord{}, fmt.Errorf("contact %s: %w", id, contact.ErrNotFound)
	}
	for k, v := range data {
		existing[k] = v
	}
	return contact.ContactRecord{ID: id, Data: copyData(existing)}, nil
}

// GetContact returns record id.
func (m *MemoryStore) GetContact(ctx context.Context, id string) (contact.ContactRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.contacts[id]
	if !ok {
		return contact.ContactRecord{}, fmt.Errorf("contact %s: %w", id, contact.ErrNotFound)
	}
	return contact.ContactRecord{ID: id, Data: copyData(data)}, nil
}

// ListContacts returns records in creation order.
func (m *MemoryStore) ListContacts(ctx context.Context) ([]contact.ContactRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]contact.ContactRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, contact.ContactRecord{ID: id, Data: copyData(m.contacts[id])})
	}
	return out, nil
}

// ListAgents returns agents in creation order.
func (m *MemoryStore) ListAgents(ctx context.Context) ([]contact.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]contact.Agent(nil), m.agents...), nil
}

// CreateAgent stores agent, assigning an id when it has none.
func (m *MemoryStore) CreateAgent(ctx context.Context, agent contact.Agent) (contact.Agent, error) {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = append(m.agents, agent)
	return agent, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
