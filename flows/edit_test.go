package flows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/oaiiae/contacts-web/datastores"
)

func johnDoe(numbers ...string) *ds.Contact {
	c := &ds.Contact{ID: 1, Firstname: "John", Lastname: "Doe"}
	for _, n := range numbers {
		c.Phones = append(c.Phones, ds.Phone{Number: n})
	}
	return c
}

func TestEditLoadWithoutContact(t *testing.T) {
	for _, rawID := range []string{"", "abc", "0", "-3"} {
		store := newRecordingStore(johnDoe("1234567890"))
		e := NewEdit(testDeps(store))

		err := e.Load(context.Background(), rawID)
		require.ErrorIs(t, err, ds.ErrObjectNotFound, rawID)
		assert.Equal(t, EditNotFound, e.Status())
		assert.Equal(t, EditForm{}, e.Form())
		assert.Empty(t, store.Calls(), "no fetch for %q", rawID)
	}

	store := newRecordingStore()
	e := NewEdit(testDeps(store))
	require.ErrorIs(t, e.Load(context.Background(), "42"), ds.ErrObjectNotFound)
	assert.Equal(t, EditNotFound, e.Status())
	assert.Equal(t, ds.ContactID(42), e.ID())

	_, err := e.Submit(context.Background())
	require.ErrorIs(t, err, ds.ErrObjectNotFound)
	assert.Equal(t, []string{"Get"}, store.Calls())
}

func TestEditLoadFailureDropsPreviousContact(t *testing.T) {
	store := newRecordingStore(johnDoe("111"), &ds.Contact{Firstname: "Mary", Lastname: "Major"})
	e := NewEdit(testDeps(store))
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "1"))

	store.getErr = &ds.TransportError{Op: "GetContactById", Err: errUpstream}
	require.ErrorIs(t, e.Load(ctx, "2"), errUpstream)
	assert.Equal(t, EditFailed, e.Status())
	assert.Equal(t, ds.ContactID(2), e.ID())
	assert.Equal(t, EditForm{}, e.Form())
	require.ErrorIs(t, e.SetPhoneByNumber("111", "999"), ErrUnknownPhone)

	e.SetNames("Changed", "ForTwo")
	outcome, err := e.Submit(ctx)
	require.ErrorIs(t, err, ErrNotLoaded)
	assert.Equal(t, NoticeError, outcome.Notice.Kind)
	assert.Equal(t, "Error updating contact", outcome.Notice.Message)
	assert.Empty(t, outcome.Redirect)
	assert.Equal(t, []string{"Get", "Get"}, store.Calls())

	john, err := store.ContactsStore.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "John", john.Firstname)
}

func TestEditLoad(t *testing.T) {
	e := NewEdit(testDeps(newRecordingStore(johnDoe("111", "222"))))
	require.NoError(t, e.Load(context.Background(), "1"))

	form := e.Form()
	assert.Equal(t, EditLoaded, e.Status())
	assert.Equal(t, "John", form.Firstname)
	assert.Equal(t, "Doe", form.Lastname)
	require.Len(t, form.Phones, 2)
	assert.Equal(t, "111", form.Phones[0].Number)
	assert.Equal(t, "222", form.Phones[1].Number)
	assert.NotEqual(t, form.Phones[0].Ref, form.Phones[1].Ref)
}

func TestEditSubmit(t *testing.T) {
	store := newRecordingStore(johnDoe("1234567890"))
	deps := testDeps(store)
	e := NewEdit(deps)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "1"))

	e.SetNames("Jane", "Doe")
	require.NoError(t, e.SetPhone(e.Form().Phones[0].Ref, "0987654321"))
	outcome, err := e.Submit(ctx)
	require.NoError(t, err)
	require.NoError(t, deps.Pending.Wait(ctx))

	assert.Equal(t, Notice{Kind: NoticeSuccess, Message: "Contact updated successfully"}, outcome.Notice)
	assert.Equal(t, ListPath, outcome.Redirect)
	assert.Equal(t, []string{"Get", "Update", "UpdatePhone"}, store.Calls())
	assert.Equal(t, []phoneUpdate{{
		key:    ds.PhoneKey{ContactID: 1, Number: "1234567890"},
		number: "0987654321",
	}}, store.PhoneUpdates())

	updated, err := store.ContactsStore.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane", updated.Firstname)
	assert.Equal(t, []string{"0987654321"}, updated.Numbers())
}

func TestEditPhonesWaitForContactUpdate(t *testing.T) {
	store := newRecordingStore(johnDoe("111", "222"))
	store.entered = make(chan string, 8)
	store.gate = make(chan struct{})
	deps := testDeps(store)
	e := NewEdit(deps)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "1"))
	assert.Equal(t, "Get", <-store.entered)

	done := make(chan error)
	go func() {
		_, err := e.Submit(ctx)
		done <- err
	}()
	assert.Equal(t, "Update", <-store.entered)
	assert.Empty(t, store.PhoneUpdates(), "no phone update while the contact update is pending")

	_, err := e.Submit(ctx)
	require.ErrorIs(t, err, ErrSubmitInFlight)
	require.ErrorIs(t, e.Load(ctx, "1"), ErrSubmitInFlight)

	close(store.gate)
	require.NoError(t, <-done)
	require.NoError(t, deps.Pending.Wait(ctx))
	assert.Len(t, store.PhoneUpdates(), 2)
}

func TestEditSubmitFailure(t *testing.T) {
	store := newRecordingStore(johnDoe("111"))
	store.updateErr = &ds.TransportError{Op: "EditContactById", Err: errUpstream}
	deps := testDeps(store)
	e := NewEdit(deps)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "1"))

	outcome, err := e.Submit(ctx)
	require.Error(t, err)
	require.NoError(t, deps.Pending.Wait(ctx))
	assert.Equal(t, NoticeError, outcome.Notice.Kind)
	assert.Equal(t, "Error updating contact", outcome.Notice.Message)
	assert.Contains(t, outcome.Notice.Description, "upstream unavailable")
	assert.Empty(t, outcome.Redirect)
	assert.Empty(t, store.PhoneUpdates())
	assert.Equal(t, Failed, e.State())
}

func TestEditPhoneIdentityIsStable(t *testing.T) {
	store := newRecordingStore(johnDoe("111", "222", "333"))
	deps := testDeps(store)
	e := NewEdit(deps)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "1"))

	require.NoError(t, e.SetPhoneByNumber("333", "999"))
	require.ErrorIs(t, e.SetPhoneByNumber("444", "1"), ErrUnknownPhone)
	require.ErrorIs(t, e.SetPhone(newPhoneRef(), "1"), ErrUnknownPhone)

	_, err := e.Submit(ctx)
	require.NoError(t, err)
	require.NoError(t, deps.Pending.Wait(ctx))

	got := map[string]string{}
	for _, u := range store.PhoneUpdates() {
		assert.Equal(t, 1, u.key.ContactID)
		got[u.key.Number] = u.number
	}
	assert.Equal(t, map[string]string{"111": "111", "222": "222", "333": "999"}, got)
}

func TestEditChainedPhoneNumbers(t *testing.T) {
	store := newRecordingStore(johnDoe("111", "222"))
	deps := testDeps(store)
	e := NewEdit(deps)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, "1"))

	require.NoError(t, e.SetPhoneByNumber("111", "333"))
	require.NoError(t, e.SetPhoneByNumber("222", "111"))
	_, err := e.Submit(ctx)
	require.NoError(t, err)
	require.NoError(t, deps.Pending.Wait(ctx))

	assert.Equal(t, []phoneUpdate{
		{key: ds.PhoneKey{ContactID: 1, Number: "111"}, number: "333"},
		{key: ds.PhoneKey{ContactID: 1, Number: "222"}, number: "111"},
	}, store.PhoneUpdates(), "updates follow the form order")
	updated, err := store.ContactsStore.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"333", "111"}, updated.Numbers())
}

func TestPhoneRefText(t *testing.T) {
	ref := newPhoneRef()
	parsed, err := ParsePhoneRef(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)

	_, err = ParsePhoneRef("short")
	assert.Error(t, err)
}
