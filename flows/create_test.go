package flows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/oaiiae/contacts-web/datastores"
)

func TestValidateNames(t *testing.T) {
	for _, name := range []string{"", "John", "Mary Ann", "R2 D2"} {
		assert.NoError(t, ValidateNames(name, "Doe"), name)
	}
	for _, name := range []string{"Jean-Luc", "O'Brien", "Zoë", "a.b", "tab\tname", "名前"} {
		err := ValidateNames(name, "Doe")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Equal(t, []string{"firstname"}, verr.Fields)
	}

	var verr *ValidationError
	require.ErrorAs(t, ValidateNames("Jo!", "Do?"), &verr)
	assert.Equal(t, []string{"firstname", "lastname"}, verr.Fields)
}

func TestCreateRejectsInvalidNames(t *testing.T) {
	store := newRecordingStore()
	c := NewCreate(testDeps(store))
	c.SetNames("Jean-Luc", "Picard")
	c.SetPhones([]string{"555"})

	outcome, err := c.Submit(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, Notice{Kind: NoticeAlert, Message: InvalidNameMessage}, outcome.Notice)
	assert.Empty(t, outcome.Redirect)
	assert.Empty(t, store.Calls(), "no network call for invalid names")
	assert.Equal(t, Failed, c.State())
	assert.Equal(t, CreateForm{Firstname: "Jean-Luc", Lastname: "Picard", Phones: []string{"555"}}, c.Form())
}

func TestCreateSubmit(t *testing.T) {
	store := newRecordingStore()
	c := NewCreate(testDeps(store))
	c.SetNames("John", "Doe")
	c.SetPhone(0, "1234567890")

	outcome, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ListPath, outcome.Redirect)
	assert.Equal(t, NoticeSuccess, outcome.Notice.Kind)
	assert.Equal(t, "Contact added successfully", outcome.Notice.Message)
	assert.Equal(t, []string{"Create"}, store.Calls())
	assert.Equal(t, emptyCreateForm(), c.Form())
	assert.Equal(t, Succeeded, c.State())

	created, err := store.Get(context.Background(), outcome.Contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "John", created.Firstname)
	assert.Equal(t, "Doe", created.Lastname)
	assert.Equal(t, []string{"1234567890"}, created.Numbers())

	_, err = c.Submit(context.Background())
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, []string{"Create", "Get"}, store.Calls(), "navigation happens exactly once")
}

func TestCreateSubmitFailurePreservesForm(t *testing.T) {
	store := newRecordingStore()
	store.createErr = &ds.GraphQLError{Op: "AddContactWithPhones", Messages: []string{"Uniqueness violation"}}
	c := NewCreate(testDeps(store))
	c.SetNames("John", "Doe")
	c.SetPhones([]string{"1", "2"})

	outcome, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, Notice{
		Kind:        NoticeError,
		Message:     "Error adding contact",
		Description: "Uniqueness violation",
	}, outcome.Notice)
	assert.Empty(t, outcome.Redirect)
	assert.Equal(t, Failed, c.State())
	assert.Equal(t, CreateForm{Firstname: "John", Lastname: "Doe", Phones: []string{"1", "2"}}, c.Form())

	store.createErr = nil
	_, err = c.Submit(context.Background())
	require.NoError(t, err, "a failed submit can be retried by the user")
}

func TestCreateDuplicateSubmit(t *testing.T) {
	store := newRecordingStore()
	store.entered = make(chan string, 1)
	store.gate = make(chan struct{})
	c := NewCreate(testDeps(store))
	c.SetNames("John", "Doe")

	done := make(chan error)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	assert.Equal(t, "Create", <-store.entered)
	assert.Equal(t, Submitting, c.State())

	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmitInFlight)
	c.Reset()
	assert.Equal(t, Submitting, c.State(), "reset waits for the submit to land")

	close(store.gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"Create"}, store.Calls())

	c.Reset()
	assert.Equal(t, Idle, c.State())
}

func TestCreatePhones(t *testing.T) {
	c := NewCreate(testDeps(newRecordingStore()))
	assert.Equal(t, []string{""}, c.Form().Phones)

	c.AddPhone()
	c.SetPhone(0, "1")
	c.SetPhone(1, "2")
	c.SetPhone(7, "ignored")
	assert.Equal(t, []string{"1", "2"}, c.Form().Phones)

	c.DeletePhone(0)
	assert.Equal(t, []string{"2"}, c.Form().Phones)
	c.DeletePhone(0)
	assert.Equal(t, []string{""}, c.Form().Phones, "at least one phone entry")
	c.DeletePhone(3)
	assert.Equal(t, []string{""}, c.Form().Phones)

	c.SetPhones(nil)
	assert.Equal(t, []string{""}, c.Form().Phones)
}
