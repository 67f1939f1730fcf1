package datastores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hasura/go-graphql-client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// CachePolicy tells [ContactsGraphQL.Get] whether it may answer from the normalized cache.
// Lists are always fetched from the network.
type CachePolicy int

const (
	CacheFirst CachePolicy = iota
	NetworkOnly
)

type GraphQLOptions struct {
	Endpoint   string
	HTTPClient *http.Client  // defaults to [http.DefaultClient]
	Cache      CachePolicy
	Limiter    *rate.Limiter // nil means unlimited
	Metrics    *metrics.Set  // nil means not metered
}

// ContactsGraphQL implements [ContactsStore] against a Hasura GraphQL endpoint.
type ContactsGraphQL struct {
	client  *graphql.Client
	cache   *normCache
	gets    singleflight.Group // concurrent network reads of one contact share a request
	policy  CachePolicy
	limiter *rate.Limiter
	metrics *metrics.Set
	tracer  trace.Tracer
}

var _ ContactsStore = (*ContactsGraphQL)(nil)

func NewContactsGraphQL(options GraphQLOptions) *ContactsGraphQL {
	base := options.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := *base
	httpClient.Transport = failureRecorder{transport}

	return &ContactsGraphQL{
		client:  graphql.NewClient(options.Endpoint, &httpClient),
		cache:   newNormCache(),
		policy:  options.Cache,
		limiter: options.Limiter,
		metrics: options.Metrics,
		tracer:  otel.Tracer("github.com/oaiiae/contacts-web/datastores"),
	}
}

func (s *ContactsGraphQL) List(ctx context.Context, params ListParams) (*ContactsPage, error) {
	variables := map[string]any{
		"offset":   params.Offset,
		"order_by": map[string]any{"created_at": "desc"},
		"where":    whereFilter(params.Search),
		"limit":    nil,
	}
	if params.Limit > 0 {
		variables["limit"] = params.Limit
	}

	var data struct {
		Contact          []*Contact `json:"contact"`
		ContactAggregate struct {
			Aggregate struct {
				Count int `json:"count"`
			} `json:"aggregate"`
		} `json:"contact_aggregate"`
	}
	if err := s.exec(ctx, opListContacts, listContactsQuery, variables, &data); err != nil {
		return nil, err
	}

	s.cache.write(data.Contact...)
	if data.Contact == nil {
		data.Contact = []*Contact{}
	}
	return &ContactsPage{Contacts: data.Contact, Total: data.ContactAggregate.Aggregate.Count}, nil
}

func (s *ContactsGraphQL) Get(ctx context.Context, id ContactID) (*Contact, error) {
	if s.policy == CacheFirst {
		if c, ok := s.cache.read(id); ok {
			return c, nil
		}
	}

	v, err, _ := s.gets.Do(strconv.Itoa(id), func() (any, error) { return s.fetch(ctx, id) })
	if err != nil {
		return nil, err
	}
	return v.(*Contact).Clone(), nil //nolint: errcheck // fetch returns *Contact
}

// fetch runs GetContactById. Callers joining the same flight share the first caller's ctx.
func (s *ContactsGraphQL) fetch(ctx context.Context, id ContactID) (*Contact, error) {
	var data struct {
		ContactByPK *Contact `json:"contact_by_pk"`
	}
	if err := s.exec(ctx, opGetContact, getContactQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.ContactByPK == nil {
		return nil, ErrObjectNotFound
	}
	s.cache.write(data.ContactByPK)
	return data.ContactByPK, nil
}

func (s *ContactsGraphQL) Create(ctx context.Context, c *Contact) (*Contact, error) {
	phones := c.Phones
	if phones == nil {
		phones = []Phone{}
	}
	variables := map[string]any{
		"first_name": c.Firstname,
		"last_name":  c.Lastname,
		"phones":     phones,
	}

	var data struct {
		InsertContact *struct {
			Returning []*Contact `json:"returning"`
		} `json:"insert_contact"`
	}
	if err := s.exec(ctx, opInsertContact, insertContactMutation, variables, &data); err != nil {
		return nil, err
	}
	if data.InsertContact == nil || len(data.InsertContact.Returning) == 0 {
		return nil, fmt.Errorf("store: %s: %w", opInsertContact, ErrEmptyResult)
	}
	s.cache.write(data.InsertContact.Returning...)
	return data.InsertContact.Returning[0], nil
}

func (s *ContactsGraphQL) Update(ctx context.Context, id ContactID, patch ContactPatch) (*Contact, error) {
	set := map[string]any{}
	if patch.Firstname != nil {
		set["first_name"] = *patch.Firstname
	}
	if patch.Lastname != nil {
		set["last_name"] = *patch.Lastname
	}

	var data struct {
		UpdateContactByPK *Contact `json:"update_contact_by_pk"`
	}
	err := s.exec(ctx, opUpdateContact, updateContactMutation, map[string]any{"id": id, "_set": set}, &data)
	if err != nil {
		return nil, err
	}
	if data.UpdateContactByPK == nil {
		return nil, ErrObjectNotFound
	}
	s.cache.write(data.UpdateContactByPK)
	return data.UpdateContactByPK, nil
}

func (s *ContactsGraphQL) UpdatePhone(ctx context.Context, key PhoneKey, number string) (*Contact, error) {
	variables := map[string]any{
		"pk_columns": map[string]any{
			"number":     key.Number,
			"contact_id": key.ContactID,
		},
		"new_phone_number": number,
	}

	var data struct {
		UpdatePhoneByPK *struct {
			Contact *Contact `json:"contact"`
		} `json:"update_phone_by_pk"`
	}
	if err := s.exec(ctx, opUpdatePhone, updatePhoneMutation, variables, &data); err != nil {
		return nil, err
	}
	if data.UpdatePhoneByPK == nil || data.UpdatePhoneByPK.Contact == nil {
		return nil, ErrObjectNotFound
	}
	s.cache.write(data.UpdatePhoneByPK.Contact)
	return data.UpdatePhoneByPK.Contact, nil
}

func (s *ContactsGraphQL) Delete(ctx context.Context, id ContactID) (*Contact, error) {
	var data struct {
		DeleteContactByPK *Contact `json:"delete_contact_by_pk"`
	}
	if err := s.exec(ctx, opDeleteContact, deleteContactMutation, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	s.cache.evict(id)
	if data.DeleteContactByPK == nil {
		return nil, ErrObjectNotFound
	}
	return data.DeleteContactByPK, nil
}

func (s *ContactsGraphQL) exec(ctx context.Context, op, query string, variables map[string]any, v any) (err error) {
	ctx, span := s.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("graphql.operation.name", op)),
	)
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = errorStatus(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.GetOrCreateCounter(`graphql_requests_total{op="` + op + `",status="` + status + `"}`).Inc()
			s.metrics.GetOrCreateHistogram(`graphql_request_duration_seconds{op="` + op + `"}`).UpdateDuration(start)
		}
	}()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	failure := new(transportFailure)
	raw, err := s.client.ExecRaw(context.WithValue(ctx, transportFailureKey{}, failure), query, variables)
	switch {
	case failure.err != nil:
		return &TransportError{Op: op, Err: failure.err}
	case err != nil && ctx.Err() != nil:
		return &TransportError{Op: op, Err: ctx.Err()}
	case err != nil:
		return &GraphQLError{Op: op, Messages: graphqlMessages(err)}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func graphqlMessages(err error) []string {
	var errs graphql.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return messages
}

func errorStatus(err error) string {
	var (
		transportErr *TransportError
		graphqlErr   *GraphQLError
	)
	switch {
	case errors.As(err, &transportErr):
		return "transport_error"
	case errors.As(err, &graphqlErr):
		return "graphql_error"
	default:
		return "error"
	}
}

// transportFailure is filled by [failureRecorder] when the HTTP exchange itself failed.
// The GraphQL client flattens every failure into its own error list, so this is
// how network errors stay distinguishable from errors payloads.
type (
	transportFailure    struct{ err error }
	transportFailureKey struct{}
)

type failureRecorder struct{ next http.RoundTripper }

func (t failureRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	failure, ok := req.Context().Value(transportFailureKey{}).(*transportFailure)
	switch {
	case !ok:
	case err != nil:
		failure.err = err
	case resp.StatusCode/100 != 2: //nolint: mnd // 2XX HTTP Status Codes
		failure.err = errors.New("unexpected status " + resp.Status)
	}
	return resp, err
}
