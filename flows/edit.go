package flows

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	ds "github.com/oaiiae/contacts-web/datastores"
)

type EditStatus int

const (
	EditEmpty EditStatus = iota
	EditLoaded
	EditNotFound
	EditFailed // the fetch failed; nothing may be submitted
)

type PhoneField struct {
	Ref    PhoneRef
	Number string
}

type EditForm struct {
	Firstname string
	Lastname  string
	Phones    []PhoneField
}

// Edit is the edit screen of one contact.
type Edit struct {
	deps Deps

	mu     sync.Mutex
	id     ds.ContactID
	status EditStatus
	form   EditForm
	loaded map[PhoneRef]string // number of each phone as loaded
	sub    submission
}

func NewEdit(deps Deps) *Edit {
	return &Edit{deps: deps.withDefaults()}
}

func (e *Edit) ID() ds.ContactID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

func (e *Edit) Status() EditStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Edit) State() SubmissionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sub.state
}

func (e *Edit) Form() EditForm {
	e.mu.Lock()
	defer e.mu.Unlock()
	form := e.form
	form.Phones = slices.Clone(e.form.Phones)
	return form
}

// Load fetches the contact named by rawID and fills the form from it. Without
// a valid id nothing is fetched. A missing contact leaves an empty form in the
// [EditNotFound] status, any other failure an empty form in [EditFailed].
func (e *Edit) Load(ctx context.Context, rawID string) error {
	e.mu.Lock()
	inFlight := e.sub.state == Submitting
	e.mu.Unlock()
	if inFlight {
		return ErrSubmitInFlight
	}

	id, err := strconv.Atoi(rawID)
	if err != nil || id < 1 {
		e.clear(0, EditNotFound)
		return ds.ErrObjectNotFound
	}
	contact, err := e.deps.Store.Get(ctx, id)
	if errors.Is(err, ds.ErrObjectNotFound) {
		e.clear(id, EditNotFound)
		return err
	}
	if err != nil {
		e.clear(id, EditFailed)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.id, e.status = id, EditLoaded
	e.form = EditForm{Firstname: contact.Firstname, Lastname: contact.Lastname}
	e.loaded = make(map[PhoneRef]string, len(contact.Phones))
	for _, p := range contact.Phones {
		ref := newPhoneRef()
		e.loaded[ref] = p.Number
		e.form.Phones = append(e.form.Phones, PhoneField{Ref: ref, Number: p.Number})
	}
	e.sub.reset()
	return nil
}

func (e *Edit) clear(id ds.ContactID, status EditStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.id, e.status = id, status
	e.form, e.loaded = EditForm{}, nil
	e.sub.reset()
}

func (e *Edit) SetNames(first, last string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form.Firstname, e.form.Lastname = first, last
}

// SetPhone sets the number of the entry identified by ref.
func (e *Edit) SetPhone(ref PhoneRef, number string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := slices.IndexFunc(e.form.Phones, func(p PhoneField) bool { return p.Ref == ref })
	if i < 0 {
		return ErrUnknownPhone
	}
	e.form.Phones[i].Number = number
	return nil
}

// SetPhoneByNumber sets the number of the entry that was loaded as current.
func (e *Edit) SetPhoneByNumber(current, number string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.form.Phones {
		if e.loaded[p.Ref] == current {
			e.form.Phones[i].Number = number
			return nil
		}
	}
	return ErrUnknownPhone
}

type phoneUpdate struct {
	key    ds.PhoneKey
	number string
}

// Submit updates the contact names, then, once that succeeded, updates every
// phone in the background. Phone outcomes are only logged.
//
// Phones are updated one at a time in form order: an entry may take the number
// another entry is giving up, which only works once that one was renamed.
func (e *Edit) Submit(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	switch e.status {
	case EditLoaded:
	case EditFailed:
		e.mu.Unlock()
		return Outcome{Notice: Notice{
			Kind:        NoticeError,
			Message:     "Error updating contact",
			Description: "contact could not be loaded",
		}}, ErrNotLoaded
	default:
		e.mu.Unlock()
		return Outcome{Notice: Notice{
			Kind:        NoticeError,
			Message:     "Error updating contact",
			Description: "contact not found",
		}}, ds.ErrObjectNotFound
	}
	if err := e.sub.begin(); err != nil {
		e.mu.Unlock()
		return Outcome{}, err
	}
	id, first, last := e.id, e.form.Firstname, e.form.Lastname
	updates := make([]phoneUpdate, 0, len(e.form.Phones))
	for _, p := range e.form.Phones {
		updates = append(updates, phoneUpdate{
			key:    ds.PhoneKey{ContactID: id, Number: e.loaded[p.Ref]},
			number: p.Number,
		})
	}
	e.mu.Unlock()

	contact, err := e.deps.Store.Update(ctx, id, ds.ContactPatch{Firstname: &first, Lastname: &last})
	e.mu.Lock()
	e.sub.finish(err)
	e.mu.Unlock()
	if err != nil {
		e.deps.Logger.Warn("could not update contact", slog.Int("id", id), slog.Any("err", err))
		return Outcome{Notice: Notice{
			Kind:        NoticeError,
			Message:     "Error updating contact",
			Description: Describe(err),
		}}, err
	}

	detached := context.WithoutCancel(ctx)
	e.deps.Pending.Go(func() { e.updatePhones(detached, updates) })
	e.deps.Logger.Info("contact updated", slog.Int("id", id), slog.Int("phones", len(updates)))
	return Outcome{
		Notice:   Notice{Kind: NoticeSuccess, Message: "Contact updated successfully"},
		Redirect: ListPath,
		Contact:  contact,
	}, nil
}

func (e *Edit) updatePhones(ctx context.Context, updates []phoneUpdate) {
	for _, u := range updates {
		if _, err := e.deps.Store.UpdatePhone(ctx, u.key, u.number); err != nil {
			e.deps.Logger.Warn("could not update phone",
				slog.Int("contact", u.key.ContactID),
				slog.String("number", u.key.Number),
				slog.Any("err", err),
			)
		}
	}
}
