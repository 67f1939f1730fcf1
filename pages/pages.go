// Package pages serves the contact book as server-rendered HTML. Each browser
// gets a session holding its own list, create and edit screens; actions follow
// POST/Redirect/GET and report their outcome through flash notices.
package pages

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/oaiiae/contacts-web/datastores"
	"github.com/oaiiae/contacts-web/flows"
)

const refreshSeconds = 2

type Pages struct {
	Deps         flows.Deps // Pending must be set
	Sessions     *Sessions
	PaintTimeout time.Duration // how long the list waits for fresh data; 0 waits until done
	ErrorHandler func(context.Context, error)
}

func (p *Pages) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, flows.ListPath, http.StatusFound)
	})
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET "+flows.ListPath, p.list)
	mux.HandleFunc("POST /contact/delete/{id}", p.delete)
	mux.HandleFunc("GET "+flows.CreatePath, p.createForm)
	mux.HandleFunc("POST "+flows.CreatePath, p.createSubmit)
	mux.HandleFunc("GET "+flows.EditPrefix+"{$}", p.editForm)
	mux.HandleFunc("GET "+flows.EditPrefix+"{id}", p.editForm)
	mux.HandleFunc("POST "+flows.EditPrefix+"{id}", p.editSubmit)
	mux.HandleFunc("/", p.notFound)
	return mux
}

func (p *Pages) notFound(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusNotFound, "notfound", layout{SEO: SEO{Title: "404"}})
}

func (p *Pages) list(w http.ResponseWriter, r *http.Request) {
	sess := p.Sessions.get(w, r)
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	size, _ := strconv.Atoi(query.Get("pageSize"))

	sess.list.Mount()
	sess.list.Search(query.Get("search"))
	sess.list.Paginate(page, size)

	// The fetch outlives the request when the paint deadline passes.
	ctx := context.WithoutCancel(r.Context())
	fetched := make(chan struct{})
	p.Deps.Pending.Go(func() {
		defer close(fetched)
		_ = sess.list.Fetch(ctx)
	})

	var deadline <-chan time.Time
	if p.PaintTimeout > 0 {
		timer := time.NewTimer(p.PaintTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	refresh := 0
	select {
	case <-fetched:
	case <-deadline:
		refresh = refreshSeconds
	case <-r.Context().Done():
		return
	}

	view := sess.list.View()
	status := http.StatusOK
	if view.Err != nil && refresh == 0 {
		status = statusOf(view.Err)
		p.report(r, status, "could not list contacts", view.Err)
	}
	p.render(w, r, status, "list", layout{
		SEO:     SEO{Title: "Contact List"},
		Notices: sess.takeNotices(),
		Refresh: refresh,
		Content: view,
	})
}

func (p *Pages) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		p.notFound(w, r)
		return
	}

	sess := p.Sessions.get(w, r)
	outcome, err := sess.list.Delete(r.Context(), id)
	if err != nil {
		p.report(r, statusOf(err), outcome.Notice.Message, err)
	}
	sess.flash(outcome.Notice)
	http.Redirect(w, r, flows.ListPath, http.StatusSeeOther)
}

type createPage struct {
	Form       flows.CreateForm
	Submitting bool
}

func (p *Pages) renderCreate(w http.ResponseWriter, r *http.Request, sess *session, status int, notices ...flows.Notice) {
	p.render(w, r, status, "create", layout{
		SEO:     SEO{Title: "Create Contact"},
		Notices: append(sess.takeNotices(), notices...),
		Content: createPage{
			Form:       sess.create.Form(),
			Submitting: sess.create.State() == flows.Submitting,
		},
	})
}

func (p *Pages) createForm(w http.ResponseWriter, r *http.Request) {
	sess := p.Sessions.get(w, r)
	if sess.create.State() != flows.Failed {
		sess.create.Reset()
	}
	p.renderCreate(w, r, sess, http.StatusOK)
}

func (p *Pages) createSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := p.Sessions.get(w, r)
	sess.create.SetNames(r.PostForm.Get("firstname"), r.PostForm.Get("lastname"))
	sess.create.SetPhones(r.PostForm["phone"])

	action := r.PostForm.Get("action")
	if action == "add-phone" {
		sess.create.AddPhone()
		p.renderCreate(w, r, sess, http.StatusOK)
		return
	}
	if raw, ok := strings.CutPrefix(action, "delete-phone:"); ok {
		i, _ := strconv.Atoi(raw)
		sess.create.DeletePhone(i)
		p.renderCreate(w, r, sess, http.StatusOK)
		return
	}

	outcome, err := sess.create.Submit(r.Context())
	p.settle(w, r, sess, outcome, err, func(status int, notices ...flows.Notice) {
		p.renderCreate(w, r, sess, status, notices...)
	})
}

type editPage struct {
	Action     string
	Form       flows.EditForm
	NotFound   bool
	Failed     bool
	Submitting bool
}

func (p *Pages) renderEdit(w http.ResponseWriter, r *http.Request, sess *session, status int, notices ...flows.Notice) {
	p.render(w, r, status, "edit", layout{
		SEO:     SEO{Title: "Edit Contact"},
		Notices: append(sess.takeNotices(), notices...),
		Content: editPage{
			Action:     r.URL.Path,
			Form:       sess.edit.Form(),
			NotFound:   sess.edit.Status() == flows.EditNotFound,
			Failed:     sess.edit.Status() == flows.EditFailed,
			Submitting: sess.edit.State() == flows.Submitting,
		},
	})
}

func (p *Pages) editForm(w http.ResponseWriter, r *http.Request) {
	sess := p.Sessions.get(w, r)
	err := sess.edit.Load(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		p.renderEdit(w, r, sess, http.StatusOK)
	case errors.Is(err, ds.ErrObjectNotFound):
		p.renderEdit(w, r, sess, http.StatusNotFound)
	default:
		status := statusOf(err)
		p.report(r, status, "could not load contact", err)
		p.renderEdit(w, r, sess, status, flows.Notice{
			Kind:        flows.NoticeError,
			Message:     "Error loading contact",
			Description: flows.Describe(err),
		})
	}
}

func (p *Pages) editSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		p.notFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := p.Sessions.get(w, r)
	if sess.edit.ID() != id || sess.edit.Status() != flows.EditLoaded {
		sess.flash(flows.Notice{
			Kind:        flows.NoticeError,
			Message:     "Error updating contact",
			Description: "The form expired, please review the contact again.",
		})
		http.Redirect(w, r, flows.EditPath(id), http.StatusSeeOther)
		return
	}

	sess.edit.SetNames(r.PostForm.Get("firstname"), r.PostForm.Get("lastname"))
	for key, values := range r.PostForm {
		raw, ok := strings.CutPrefix(key, phoneFieldPrefix)
		if !ok || len(values) == 0 {
			continue
		}
		ref, err := flows.ParsePhoneRef(raw)
		if err == nil {
			err = sess.edit.SetPhone(ref, values[0])
		}
		if err != nil {
			p.report(r, http.StatusBadRequest, "unknown phone field "+key, err)
		}
	}

	outcome, err := sess.edit.Submit(r.Context())
	p.settle(w, r, sess, outcome, err, func(status int, notices ...flows.Notice) {
		p.renderEdit(w, r, sess, status, notices...)
	})
}

// settle answers a submit: redirect on success, otherwise render the form again with the notice.
func (p *Pages) settle(
	w http.ResponseWriter,
	r *http.Request,
	sess *session,
	outcome flows.Outcome,
	err error,
	rerender func(status int, notices ...flows.Notice),
) {
	switch {
	case err == nil:
		sess.flash(outcome.Notice)
		http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
	case errors.Is(err, flows.ErrAlreadySubmitted):
		http.Redirect(w, r, flows.ListPath, http.StatusSeeOther)
	case errors.Is(err, flows.ErrSubmitInFlight):
		rerender(http.StatusConflict, flows.Notice{Kind: flows.NoticeError, Message: "A submit is already in progress"})
	default:
		status := statusOf(err)
		p.report(r, status, outcome.Notice.Message, err)
		rerender(status, outcome.Notice)
	}
}

func statusOf(err error) int {
	var (
		validationErr *flows.ValidationError
		graphqlErr    *ds.GraphQLError
	)
	switch {
	case errors.Is(err, ds.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flows.ErrSubmitInFlight), errors.Is(err, ds.ErrObjectConflict), errors.As(err, &graphqlErr):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// report hands err to the error handler as a [huma.StatusError] so that pages
// and API operations are logged alike.
func (p *Pages) report(r *http.Request, status int, msg string, err error) {
	if p.ErrorHandler != nil {
		p.ErrorHandler(r.Context(), huma.NewError(status, msg, err))
	}
}
