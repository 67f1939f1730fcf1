// Package flows holds the per-screen state and orchestration of the contact
// book: what each screen fetches, how its form state changes and what a
// submit does. Rendering is left to the caller.
package flows

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	ds "github.com/oaiiae/contacts-web/datastores"
	"github.com/oaiiae/contacts-web/localstore"
)

const (
	ListPath   = "/contact/list"
	CreatePath = "/contact/create"
	EditPrefix = "/contact/edit/"
)

func EditPath(id ds.ContactID) string { return EditPrefix + strconv.Itoa(id) }

// Deps are shared by every flow.
type Deps struct {
	Store   ds.ContactsStore
	Mirror  *localstore.Mirror // optional
	Logger  *slog.Logger       // defaults to [slog.Default]
	Pending *Pending           // defaults to a private tracker
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Pending == nil {
		d.Pending = new(Pending)
	}
	return d
}

var (
	ErrSubmitInFlight   = errors.New("flows: a submit is already in flight")
	ErrAlreadySubmitted = errors.New("flows: already submitted")
	ErrUnknownPhone     = errors.New("flows: unknown phone")
	ErrNotLoaded        = errors.New("flows: contact not loaded")
)

type NoticeKind int

const (
	// NoticeAlert blocks the user until dismissed; used for validation.
	NoticeAlert NoticeKind = iota
	NoticeSuccess
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeAlert:
		return "alert"
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "notice(" + strconv.Itoa(int(k)) + ")"
	}
}

type Notice struct {
	Kind        NoticeKind
	Message     string
	Description string
}

// Outcome tells the shell what to show after a user action.
type Outcome struct {
	Notice   Notice
	Redirect string // empty means stay
	Contact  *ds.Contact
}

// Pending tracks background work started by flows so that it can be drained on shutdown.
type Pending struct {
	wg sync.WaitGroup
}

func (p *Pending) Go(f func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		f()
	}()
}

// Wait blocks until all background work is done or ctx expires.
func (p *Pending) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
