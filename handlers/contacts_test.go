package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/oaiiae/contacts-web/datastores"
	"github.com/oaiiae/contacts-web/flows"
	"github.com/oaiiae/contacts-web/localstore"
)

func newTestAPI(t *testing.T, cs ...*ds.Contact) (humatest.TestAPI, flows.Deps) {
	t.Helper()
	deps := flows.Deps{
		Store:   ds.NewContactsInmem(cs...),
		Mirror:  localstore.NewMirror(localstore.NewMemory()),
		Logger:  slog.New(slog.DiscardHandler),
		Pending: new(flows.Pending),
	}
	_, api := humatest.New(t)
	huma.AutoRegister(huma.NewGroup(api, "/contacts"), &Contacts{Deps: deps})
	t.Cleanup(func() {
		require.NoError(t, deps.Pending.Wait(context.Background()))
	})
	return api, deps
}

func listBody(t *testing.T, body []byte) (out ContactsListOutput) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, &out.Body))
	return out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestContactsList(t *testing.T) {
	api, deps := newTestAPI(t,
		&ds.Contact{Firstname: "John", Lastname: "Doe", Phones: []ds.Phone{{Number: "123456789"}}},
		&ds.Contact{Firstname: "Mary", Lastname: "Jane", Phones: []ds.Phone{}},
	)

	resp := api.Get("/contacts/?search=jo")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := listBody(t, resp.Body.Bytes()).Body
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, flows.DefaultPageSize, body.PageSize)
	require.Len(t, body.Contacts, 1)
	assert.Equal(t, "John", body.Contacts[0].Firstname)
	assert.Equal(t, []string{"123456789"}, body.Contacts[0].Phones)

	mirrored, err := deps.Mirror.Load()
	require.NoError(t, err)
	assert.Len(t, mirrored, 1)

	resp = api.Get("/contacts/?page=2&pageSize=1")
	require.Equal(t, http.StatusOK, resp.Code)
	body = listBody(t, resp.Body.Bytes()).Body
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Contacts, 1)
	assert.Equal(t, "John", body.Contacts[0].Firstname, "newest first")

	resp = api.Get("/contacts/?pageSize=1000")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestContactsGet(t *testing.T) {
	api, _ := newTestAPI(t, &ds.Contact{Firstname: "John", Lastname: "Doe", Phones: []ds.Phone{{Number: "1"}}})

	resp := api.Get("/contacts/1")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[ContactModel](t, resp.Body.Bytes())
	assert.Equal(t, ContactModel{ID: 1, Firstname: "John", Lastname: "Doe", Phones: []string{"1"}}, body)

	assert.Equal(t, http.StatusNotFound, api.Get("/contacts/7").Code)
}

func TestContactsPost(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Post("/contacts/", map[string]any{
		"firstname": "John",
		"lastname":  "Doe",
		"phones":    []string{"1234567890"},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	body := decode[ContactModel](t, resp.Body.Bytes())
	assert.Equal(t, 1, body.ID)
	assert.Equal(t, []string{"1234567890"}, body.Phones)
	assert.NotEmpty(t, body.CreatedAt)

	resp = api.Post("/contacts/", map[string]any{
		"firstname": "Jean-Luc",
		"lastname":  "Picard",
		"phones":    []string{"1"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), flows.InvalidNameMessage)
}

func TestContactsPut(t *testing.T) {
	api, deps := newTestAPI(t, &ds.Contact{Firstname: "John", Lastname: "Doe", Phones: []ds.Phone{{Number: "1234567890"}}})

	resp := api.Put("/contacts/1", map[string]any{
		"firstname": "Jane",
		"lastname":  "Doe",
		"phones":    []map[string]string{{"current": "1234567890", "number": "0987654321"}},
	})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	require.NoError(t, deps.Pending.Wait(context.Background()))

	contact, err := deps.Store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane", contact.Firstname)
	assert.Equal(t, []string{"0987654321"}, contact.Numbers())

	resp = api.Put("/contacts/1", map[string]any{
		"firstname": "Jane",
		"lastname":  "Doe",
		"phones":    []map[string]string{{"current": "555", "number": "1"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Put("/contacts/9", map[string]any{"firstname": "a", "lastname": "b"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestContactsDelete(t *testing.T) {
	api, deps := newTestAPI(t, &ds.Contact{Firstname: "John"}, &ds.Contact{Firstname: "Mary"})
	require.NoError(t, deps.Mirror.Save([]*ds.Contact{{ID: 2, Firstname: "Mary"}, {ID: 1, Firstname: "John"}}))

	assert.Equal(t, http.StatusNoContent, api.Delete("/contacts/1").Code)
	assert.Equal(t, http.StatusNotFound, api.Delete("/contacts/1").Code)

	mirrored, err := deps.Mirror.Load()
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.Equal(t, "Mary", mirrored[0].Firstname)
}

func TestStatusError(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
	}{
		{ds.ErrObjectNotFound, http.StatusNotFound},
		{&flows.ValidationError{Fields: []string{"firstname"}}, http.StatusUnprocessableEntity},
		{flows.ErrUnknownPhone, http.StatusUnprocessableEntity},
		{ds.ErrObjectConflict, http.StatusConflict},
		{&ds.GraphQLError{Op: "DeleteContact", Messages: []string{"denied"}}, http.StatusConflict},
		{&ds.TransportError{Op: "DeleteContact", Err: context.DeadlineExceeded}, http.StatusBadGateway},
		{ds.ErrEmptyResult, http.StatusBadGateway},
	} {
		var statusErr huma.StatusError
		require.ErrorAs(t, statusError(tc.err), &statusErr, tc.err.Error())
		assert.Equal(t, tc.status, statusErr.GetStatus(), tc.err.Error())
	}
	assert.NoError(t, statusError(nil))
}
