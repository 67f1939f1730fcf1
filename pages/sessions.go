package pages

import (
	"container/list"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oaiiae/contacts-web/flows"
)

const SessionCookie = "contacts_session"

// session holds the screens of one browser and the notices waiting to be shown to it.
type session struct {
	id     string
	list   *flows.List
	create *flows.Create
	edit   *flows.Edit

	mu      sync.Mutex
	notices []flows.Notice
}

func (s *session) flash(n flows.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *session) takeNotices() []flows.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	notices := s.notices
	s.notices = nil
	return notices
}

type sessionEntry struct {
	session   *session
	expiresAt time.Time
}

// Sessions is an LRU of sessions with an idle TTL.
type Sessions struct {
	deps     flows.Deps
	ttl      time.Duration
	capacity int
	secure   bool

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
	nowFn func() time.Time
}

type SessionsOptions struct {
	TTL      time.Duration
	Capacity int
	Secure   bool // sets the Secure cookie attribute
}

func NewSessions(deps flows.Deps, options SessionsOptions) *Sessions {
	return &Sessions{
		deps:     deps,
		ttl:      options.TTL,
		capacity: max(1, options.Capacity),
		secure:   options.Secure,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

// Len returns the number of sessions, expired ones included until they are touched or evicted.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// get returns the session of r, starting a new one and setting its cookie when needed.
func (s *Sessions) get(w http.ResponseWriter, r *http.Request) *session {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if sess, ok := s.lookup(cookie.Value); ok {
			return sess
		}
	}

	sess := &session{
		id:     uuid.NewString(),
		list:   flows.NewList(s.deps),
		create: flows.NewCreate(s.deps),
		edit:   flows.NewEdit(s.deps),
	}
	s.put(sess)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Sessions) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*sessionEntry) //nolint: errcheck // always true
	now := s.nowFn()
	if s.ttl > 0 && now.After(e.expiresAt) {
		s.removeElement(elem)
		return nil, false
	}
	e.expiresAt = now.Add(s.ttl)
	s.order.MoveToFront(elem)
	return e.session, true
}

func (s *Sessions) put(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.order.Len() >= s.capacity {
		s.removeElement(s.order.Back())
	}
	s.items[sess.id] = s.order.PushFront(&sessionEntry{
		session:   sess,
		expiresAt: s.nowFn().Add(s.ttl),
	})
}

func (s *Sessions) removeElement(elem *list.Element) {
	s.order.Remove(elem)
	delete(s.items, elem.Value.(*sessionEntry).session.id) //nolint: errcheck // always true
}
