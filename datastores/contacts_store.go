package datastores

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type (
	ContactID = int
	Contact   struct {
		ID        ContactID `json:"id"`
		Firstname string    `json:"first_name"`
		Lastname  string    `json:"last_name"`
		CreatedAt string    `json:"created_at,omitempty"`
		Phones    []Phone   `json:"phones"`
	}
	Phone struct {
		Number string `json:"number"`
	}
)

// PhoneKey is the remote identity of a phone: its owner and its current number.
type PhoneKey struct {
	ContactID ContactID
	Number    string
}

// ListParams selects one page of contacts. An empty Search means no filter.
type ListParams struct {
	Search string
	Limit  int
	Offset int
}

// ContactsPage is a page of contacts plus the number of contacts matching the same filter.
type ContactsPage struct {
	Contacts []*Contact
	Total    int
}

// ContactPatch holds the contact fields to update; nil fields are left untouched.
type ContactPatch struct {
	Firstname *string
	Lastname  *string
}

type ContactsStore interface {
	List(context.Context, ListParams) (*ContactsPage, error)
	Get(context.Context, ContactID) (*Contact, error)
	Create(context.Context, *Contact) (*Contact, error)
	Update(context.Context, ContactID, ContactPatch) (*Contact, error)
	UpdatePhone(ctx context.Context, key PhoneKey, number string) (*Contact, error)
	Delete(context.Context, ContactID) (*Contact, error)
}

var (
	ErrObjectNotFound = errors.New("store: object not found")
	ErrObjectConflict = errors.New("store: object already exists")
	ErrEmptyResult    = errors.New("store: empty result")
)

// GraphQLError reports an errors payload returned by the remote service.
type GraphQLError struct {
	Op       string
	Messages []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Op, strings.Join(e.Messages, "; "))
}

// TransportError reports a request that never produced a GraphQL response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Clone returns a deep copy of c.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Phones != nil {
		clone.Phones = make([]Phone, len(c.Phones))
		copy(clone.Phones, c.Phones)
	}
	return &clone
}

// Numbers returns the phone numbers of c in display order.
func (c *Contact) Numbers() []string {
	numbers := make([]string, 0, len(c.Phones))
	for _, p := range c.Phones {
		numbers = append(numbers, p.Number)
	}
	return numbers
}
