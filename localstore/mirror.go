package localstore

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	ds "github.com/oaiiae/contacts-web/datastores"
)

// ContactsKey is where the last fetched contact page is kept.
const ContactsKey = "contacts"

// Mirror keeps a JSON copy of the last fetched contact page. It is a
// placeholder for painting a list before fresh data arrives, never a source of truth.
type Mirror struct {
	mu      sync.Mutex // serializes read-modify-write in Forget
	storage Storage
}

func NewMirror(storage Storage) *Mirror { return &Mirror{storage: storage} }

// Load returns the mirrored page, or nil when nothing was saved yet.
func (m *Mirror) Load() ([]*ds.Contact, error) {
	text, ok, err := m.storage.GetItem(ContactsKey)
	if err != nil || !ok {
		return nil, err
	}
	var contacts []*ds.Contact
	if err := json.Unmarshal([]byte(text), &contacts); err != nil {
		return nil, fmt.Errorf("localstore: decode %s: %w", ContactsKey, err)
	}
	return contacts, nil
}

// Save overwrites the mirror with contacts.
func (m *Mirror) Save(contacts []*ds.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(contacts)
}

// Forget drops one contact from the mirror and leaves the others untouched.
func (m *Mirror) Forget(id ds.ContactID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	contacts, err := m.Load()
	if err != nil || contacts == nil {
		return err
	}
	kept := slices.DeleteFunc(contacts, func(c *ds.Contact) bool { return c.ID == id })
	return m.save(kept)
}

func (m *Mirror) save(contacts []*ds.Contact) error {
	if contacts == nil {
		contacts = []*ds.Contact{}
	}
	text, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("localstore: encode %s: %w", ContactsKey, err)
	}
	return m.storage.SetItem(ContactsKey, string(text))
}
