package flows

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	ds "github.com/oaiiae/contacts-web/datastores"
)

// ListView is a snapshot of the list screen.
type ListView struct {
	Query   ListQuery
	Rows    []*ds.Contact
	Stale   bool // Rows come from the mirror, not from the network
	Loading bool
	Err     error
}

// List is the list screen: search, pagination, delete.
type List struct {
	deps Deps

	mu      sync.Mutex
	query   ListQuery
	rows    []*ds.Contact
	stale   bool
	loading bool
	err     error
	fetched bool   // a fetch succeeded once; the mirror is not read anymore
	gen     uint64 // incremented per fetch; older results are dropped
}

func NewList(deps Deps) *List {
	return &List{deps: deps.withDefaults(), query: NewListQuery()}
}

// Mount resets the query state. Until the first fetch succeeds, rows are
// painted from the mirror; afterwards they stay empty until the next fetch.
func (l *List) Mount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = NewListQuery()
	l.err = nil
	l.loading = true
	if l.fetched {
		l.rows, l.stale = nil, false
		return
	}
	if l.deps.Mirror == nil {
		return
	}
	rows, err := l.deps.Mirror.Load()
	if err != nil {
		l.deps.Logger.Warn("could not load mirrored contacts", slog.Any("err", err))
		return
	}
	l.rows, l.stale = rows, true
}

func (l *List) Search(term string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query.SetSearch(term)
}

func (l *List) Paginate(page, size int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query.SetPage(page, size)
}

// Fetch loads the page selected by the query state and mirrors it.
func (l *List) Fetch(ctx context.Context) error {
	l.mu.Lock()
	l.gen++
	gen, params := l.gen, l.query.params()
	l.loading = true
	l.mu.Unlock()

	page, err := l.deps.Store.List(ctx, params)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return err
	}
	l.loading = false
	if err != nil {
		l.err = err
		return err
	}
	l.rows, l.stale, l.err, l.fetched = page.Contacts, false, nil, true
	l.query.Total = page.Total
	if l.deps.Mirror != nil {
		if err := l.deps.Mirror.Save(page.Contacts); err != nil {
			l.deps.Logger.Warn("could not mirror contacts", slog.Any("err", err))
		}
	}
	return nil
}

// Delete removes a contact from the store, the mirror and the displayed rows.
// The outcome redirects to the list, whose next mount refetches.
func (l *List) Delete(ctx context.Context, id ds.ContactID) (Outcome, error) {
	if _, err := l.deps.Store.Delete(ctx, id); err != nil {
		return Outcome{Notice: Notice{
			Kind:        NoticeError,
			Message:     "Error deleting contact",
			Description: Describe(err),
		}}, err
	}

	if l.deps.Mirror != nil {
		if err := l.deps.Mirror.Forget(id); err != nil {
			l.deps.Logger.Warn("could not forget mirrored contact", slog.Int("id", id), slog.Any("err", err))
		}
	}
	l.mu.Lock()
	l.rows = slices.DeleteFunc(slices.Clone(l.rows), func(c *ds.Contact) bool { return c.ID == id })
	l.mu.Unlock()

	return Outcome{
		Notice:   Notice{Kind: NoticeSuccess, Message: "Contact deleted successfully"},
		Redirect: ListPath,
	}, nil
}

func (l *List) View() ListView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ListView{
		Query:   l.query,
		Rows:    append([]*ds.Contact(nil), l.rows...),
		Stale:   l.stale,
		Loading: l.loading,
		Err:     l.err,
	}
}
