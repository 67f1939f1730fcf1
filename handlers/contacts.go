package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/oaiiae/contacts-web/datastores"
	"github.com/oaiiae/contacts-web/flows"
)

type Contacts struct {
	Deps         flows.Deps
	ErrorHandler func(context.Context, error)
}

type ContactModel struct {
	ID ds.ContactID `json:"id" readOnly:"true"`

	Firstname string   `json:"firstname"           example:"john"`
	Lastname  string   `json:"lastname"            example:"smith"`
	CreatedAt string   `json:"createdAt,omitempty" readOnly:"true" format:"date-time"`
	Phones    []string `json:"phones"              example:"[\"0812345678\"]"`
}

func contactModel(c *ds.Contact) ContactModel {
	return ContactModel{
		ID:        c.ID,
		Firstname: c.Firstname,
		Lastname:  c.Lastname,
		CreatedAt: c.CreatedAt,
		Phones:    c.Numbers(),
	}
}

func (h *Contacts) RegisterList(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/",
		handlerWithErrorHandler(h.list, h.ErrorHandler),
		opErrors(http.StatusBadGateway),
	)
}

type ContactsListOutput struct {
	Body struct {
		Contacts []ContactModel `json:"contacts"`
		Total    int            `json:"total"`
		Page     int            `json:"page"`
		PageSize int            `json:"pageSize"`
	}
}

func (h *Contacts) list(ctx context.Context, input *struct {
	Search   string `query:"search"   doc:"case-insensitive substring of the first name"`
	Page     int    `query:"page"     doc:"page number"  default:"1"  minimum:"1"`
	PageSize int    `query:"pageSize" doc:"page size"    default:"10" minimum:"1" maximum:"100"`
}) (*ContactsListOutput, error) {
	list := flows.NewList(h.Deps)
	list.Search(input.Search)
	list.Paginate(input.Page, input.PageSize)
	if err := list.Fetch(ctx); err != nil {
		return nil, statusError(err)
	}

	view := list.View()
	output := &ContactsListOutput{}
	output.Body.Contacts = make([]ContactModel, 0, len(view.Rows))
	for _, contact := range view.Rows {
		output.Body.Contacts = append(output.Body.Contacts, contactModel(contact))
	}
	output.Body.Total = view.Query.Total
	output.Body.Page = view.Query.Page
	output.Body.PageSize = view.Query.PageSize
	return output, nil
}

func (h *Contacts) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/{id}",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusBadGateway),
	)
}

type ContactOutput struct {
	Body ContactModel
}

func (h *Contacts) get(ctx context.Context, input *struct {
	ID ds.ContactID `path:"id" doc:"ID of the contact to get"`
}) (*ContactOutput, error) {
	edit := flows.NewEdit(h.Deps)
	if err := edit.Load(ctx, strconv.Itoa(input.ID)); err != nil {
		return nil, statusError(err)
	}
	form := edit.Form()
	body := ContactModel{ID: edit.ID(), Firstname: form.Firstname, Lastname: form.Lastname, Phones: []string{}}
	for _, p := range form.Phones {
		body.Phones = append(body.Phones, p.Number)
	}
	return &ContactOutput{Body: body}, nil
}

func (h *Contacts) RegisterPost(api huma.API) { // called by [huma.AutoRegister]
	huma.Post(api, "/",
		handlerWithErrorHandler(h.post, h.ErrorHandler),
		opErrors(http.StatusConflict, http.StatusUnprocessableEntity, http.StatusBadGateway),
		func(o *huma.Operation) { o.DefaultStatus = http.StatusCreated },
	)
}

func (h *Contacts) post(ctx context.Context, input *struct {
	Body struct {
		Firstname string   `json:"firstname" example:"john"`
		Lastname  string   `json:"lastname"  example:"smith"`
		Phones    []string `json:"phones"    minItems:"1"`
	}
}) (*ContactOutput, error) {
	create := flows.NewCreate(h.Deps)
	create.SetNames(input.Body.Firstname, input.Body.Lastname)
	create.SetPhones(input.Body.Phones)
	outcome, err := create.Submit(ctx)
	if err != nil {
		return nil, statusError(err)
	}
	return &ContactOutput{Body: contactModel(outcome.Contact)}, nil
}

func (h *Contacts) RegisterPut(api huma.API) { // called by [huma.AutoRegister]
	huma.Put(api, "/{id}",
		handlerWithErrorHandler(h.put, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity, http.StatusBadGateway),
		func(o *huma.Operation) {
			o.DefaultStatus = http.StatusAccepted
			o.Description = "Names are updated before responding; phone numbers are updated afterwards."
		},
	)
}

type PhoneChange struct {
	Current string `json:"current" doc:"number as currently stored"`
	Number  string `json:"number"  doc:"new number"`
}

func (h *Contacts) put(ctx context.Context, input *struct {
	ID   ds.ContactID `path:"id" doc:"ID of the contact to update"`
	Body struct {
		Firstname string        `json:"firstname" example:"john"`
		Lastname  string        `json:"lastname"  example:"smith"`
		Phones    []PhoneChange `json:"phones,omitempty" required:"false"`
	}
}) (*ContactOutput, error) {
	edit := flows.NewEdit(h.Deps)
	if err := edit.Load(ctx, strconv.Itoa(input.ID)); err != nil {
		return nil, statusError(err)
	}
	if err := flows.ValidateNames(input.Body.Firstname, input.Body.Lastname); err != nil {
		return nil, statusError(err)
	}
	edit.SetNames(input.Body.Firstname, input.Body.Lastname)
	for _, change := range input.Body.Phones {
		if err := edit.SetPhoneByNumber(change.Current, change.Number); err != nil {
			return nil, statusError(err)
		}
	}

	form := edit.Form()
	if _, err := edit.Submit(ctx); err != nil {
		return nil, statusError(err)
	}
	body := ContactModel{ID: input.ID, Firstname: form.Firstname, Lastname: form.Lastname, Phones: []string{}}
	for _, p := range form.Phones {
		body.Phones = append(body.Phones, p.Number)
	}
	return &ContactOutput{Body: body}, nil
}

func (h *Contacts) RegisterDel(api huma.API) { // called by [huma.AutoRegister]
	huma.Delete(api, "/{id}",
		handlerWithErrorHandler(h.del, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusBadGateway),
	)
}

func (h *Contacts) del(ctx context.Context, input *struct {
	ID ds.ContactID `path:"id" doc:"ID of the contact to delete"`
}) (*struct{}, error) {
	_, err := flows.NewList(h.Deps).Delete(ctx, input.ID)
	return nil, statusError(err)
}
