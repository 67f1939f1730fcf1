package datastores

import (
	"strconv"
	"sync"
)

// entityKey identifies a normalized entity, e.g. "Contact:12".
type entityKey string

func contactKey(id ContactID) entityKey { return entityKey("Contact:" + strconv.Itoa(id)) }

// normCache keeps the latest known copy of every entity seen in a response.
// Phones are owned by their contact and normalized with it.
type normCache struct {
	mu       sync.RWMutex
	entities map[entityKey]*Contact
}

func newNormCache() *normCache {
	return &normCache{entities: make(map[entityKey]*Contact)}
}

func (c *normCache) write(contacts ...*Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, contact := range contacts {
		if contact == nil {
			continue
		}
		key := contactKey(contact.ID)
		merged := contact.Clone()
		// Partial selections (e.g. delete results) carry no phones and must not
		// erase what a fuller response already normalized.
		if prev, ok := c.entities[key]; ok {
			if merged.Phones == nil {
				merged.Phones = prev.Clone().Phones
			}
			if merged.CreatedAt == "" {
				merged.CreatedAt = prev.CreatedAt
			}
		}
		c.entities[key] = merged
	}
}

func (c *normCache) read(id ContactID) (*Contact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contact, ok := c.entities[contactKey(id)]
	if !ok || contact.Phones == nil {
		return nil, false
	}
	return contact.Clone(), true
}

func (c *normCache) evict(id ContactID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entities, contactKey(id))
}
