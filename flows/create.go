package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	ds "github.com/oaiiae/contacts-web/datastores"
)

// CreateForm is the editable state of the create screen. Phones always has at least one entry.
type CreateForm struct {
	Firstname string
	Lastname  string
	Phones    []string
}

func emptyCreateForm() CreateForm { return CreateForm{Phones: []string{""}} }

// Create is the create screen.
type Create struct {
	deps Deps

	mu   sync.Mutex
	form CreateForm
	sub  submission
}

func NewCreate(deps Deps) *Create {
	return &Create{deps: deps.withDefaults(), form: emptyCreateForm()}
}

func (c *Create) Form() CreateForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	form := c.form
	form.Phones = slices.Clone(c.form.Phones)
	return form
}

func (c *Create) State() SubmissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub.state
}

func (c *Create) SetNames(first, last string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Firstname, c.form.Lastname = first, last
}

// SetPhones replaces every phone entry; an empty list leaves one empty entry.
func (c *Create) SetPhones(phones []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Phones = slices.Clone(phones)
	if len(c.form.Phones) == 0 {
		c.form.Phones = []string{""}
	}
}

func (c *Create) SetPhone(i int, number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= 0 && i < len(c.form.Phones) {
		c.form.Phones[i] = number
	}
}

func (c *Create) AddPhone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Phones = append(c.form.Phones, "")
}

// DeletePhone removes entry i. Removing the only entry clears it instead.
func (c *Create) DeletePhone(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.form.Phones) {
		return
	}
	c.form.Phones = slices.Delete(c.form.Phones, i, i+1)
	if len(c.form.Phones) == 0 {
		c.form.Phones = []string{""}
	}
}

// Reset clears the form for a new contact. It is a no-op while a submit is in flight.
func (c *Create) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub.reset() {
		c.form = emptyCreateForm()
	}
}

// Submit validates the names and inserts the contact with all its phones in one mutation.
// On success the form is cleared; on failure it is kept for correction.
func (c *Create) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if err := c.sub.begin(); err != nil {
		c.mu.Unlock()
		return Outcome{}, err
	}
	form := c.form
	form.Phones = slices.Clone(c.form.Phones)
	c.mu.Unlock()

	if err := ValidateNames(form.Firstname, form.Lastname); err != nil {
		c.finish(err)
		return Outcome{Notice: Notice{Kind: NoticeAlert, Message: InvalidNameMessage}}, err
	}

	phones := make([]ds.Phone, 0, len(form.Phones))
	for _, number := range form.Phones {
		phones = append(phones, ds.Phone{Number: number})
	}
	contact, err := c.deps.Store.Create(ctx, &ds.Contact{
		Firstname: form.Firstname,
		Lastname:  form.Lastname,
		Phones:    phones,
	})
	c.finish(err)
	if err != nil {
		c.deps.Logger.Warn("could not add contact", slog.Any("err", err))
		return Outcome{Notice: Notice{
			Kind:        NoticeError,
			Message:     "Error adding contact",
			Description: Describe(err),
		}}, err
	}

	c.deps.Logger.Info("contact added", slog.Int("id", contact.ID))
	return Outcome{
		Notice:   Notice{Kind: NoticeSuccess, Message: "Contact added successfully"},
		Redirect: ListPath,
		Contact:  contact,
	}, nil
}

func (c *Create) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sub.finish(err)
	if err == nil {
		c.form = emptyCreateForm()
	}
}

// Describe turns a store error into the text shown under a notice.
func Describe(err error) string {
	var graphqlErr *ds.GraphQLError
	if errors.As(err, &graphqlErr) && len(graphqlErr.Messages) > 0 {
		return graphqlErr.Messages[0]
	}
	var transportErr *ds.TransportError
	if errors.As(err, &transportErr) {
		return fmt.Sprintf("could not reach the contacts service: %v", transportErr.Err)
	}
	return err.Error()
}
