package datastores

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// ContactsInmem implements [ContactsStore].
type ContactsInmem struct {
	mu       sync.Mutex
	seq      ContactID
	index    map[ContactID]int
	contacts []*Contact // oldest first
}

var _ ContactsStore = (*ContactsInmem)(nil)

func NewContactsInmem(cs ...*Contact) *ContactsInmem {
	s := &ContactsInmem{index: make(map[ContactID]int, len(cs))}
	for _, c := range cs {
		s.insert(c.Clone())
	}
	return s
}

func (s *ContactsInmem) insert(c *Contact) {
	if c.ID == 0 {
		c.ID = s.seq + 1
	}
	s.seq = max(s.seq, c.ID)
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if c.Phones == nil {
		c.Phones = []Phone{}
	}
	s.index[c.ID] = len(s.contacts)
	s.contacts = append(s.contacts, c)
}

func (s *ContactsInmem) List(_ context.Context, params ListParams) (*ContactsPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(params.Search)
	var matched []*Contact
	for _, c := range slices.Backward(s.contacts) {
		if search == "" || strings.Contains(strings.ToLower(c.Firstname), search) {
			matched = append(matched, c)
		}
	}

	page := &ContactsPage{Contacts: []*Contact{}, Total: len(matched)}
	end := len(matched)
	if params.Limit > 0 {
		end = min(params.Offset+params.Limit, len(matched))
	}
	for _, c := range matched[min(params.Offset, len(matched)):end] {
		page.Contacts = append(page.Contacts, c.Clone())
	}
	return page, nil
}

func (s *ContactsInmem) Get(_ context.Context, id ContactID) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(id)
	if !ok {
		return nil, ErrObjectNotFound
	}
	return c.Clone(), nil
}

func (s *ContactsInmem) Create(_ context.Context, c *Contact) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c = c.Clone()
	c.ID, c.CreatedAt = 0, ""
	s.insert(c)
	return c.Clone(), nil
}

func (s *ContactsInmem) Update(_ context.Context, id ContactID, patch ContactPatch) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(id)
	if !ok {
		return nil, ErrObjectNotFound
	}
	if patch.Firstname != nil {
		c.Firstname = *patch.Firstname
	}
	if patch.Lastname != nil {
		c.Lastname = *patch.Lastname
	}
	return c.Clone(), nil
}

func (s *ContactsInmem) UpdatePhone(_ context.Context, key PhoneKey, number string) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(key.ContactID)
	if !ok {
		return nil, ErrObjectNotFound
	}
	i := slices.IndexFunc(c.Phones, func(p Phone) bool { return p.Number == key.Number })
	if i < 0 {
		return nil, ErrObjectNotFound
	}
	if number != key.Number && slices.ContainsFunc(c.Phones, func(p Phone) bool { return p.Number == number }) {
		return nil, ErrObjectConflict
	}
	c.Phones[i].Number = number
	return c.Clone(), nil
}

func (s *ContactsInmem) Delete(_ context.Context, id ContactID) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.index[id]
	if !ok {
		return nil, ErrObjectNotFound
	}
	deleted := s.contacts[index]
	s.contacts = slices.Delete(s.contacts, index, index+1)
	delete(s.index, id)
	for i := index; i < len(s.contacts); i++ {
		s.index[s.contacts[i].ID] = i
	}
	return deleted, nil
}

func (s *ContactsInmem) lookup(id ContactID) (*Contact, bool) {
	index, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.contacts[index], true
}
