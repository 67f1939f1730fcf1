package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/oaiiae/contacts-web/datastores"
	"github.com/oaiiae/contacts-web/flows"
)

type handler[I, O any] = func(context.Context, *I) (*O, error)

func handlerWithErrorHandler[I, O any](handler handler[I, O], do func(context.Context, error)) handler[I, O] {
	if do == nil {
		return handler
	}

	return func(ctx context.Context, i *I) (*O, error) {
		o, err := handler(ctx, i)
		if err != nil {
			do(ctx, err)
		}
		return o, err
	}
}

func opErrors(codes ...int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.Errors = codes }
}

// statusError maps flow and store errors to their HTTP status.
func statusError(err error) error {
	var (
		validationErr *flows.ValidationError
		graphqlErr    *ds.GraphQLError
		transportErr  *ds.TransportError
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ds.ErrObjectNotFound):
		return huma.Error404NotFound("contact not found", err)
	case errors.As(err, &validationErr):
		return huma.Error422UnprocessableEntity(flows.InvalidNameMessage, err)
	case errors.Is(err, flows.ErrUnknownPhone):
		return huma.Error422UnprocessableEntity("phone does not belong to the contact", err)
	case errors.Is(err, ds.ErrObjectConflict), errors.As(err, &graphqlErr):
		return huma.Error409Conflict("rejected by the contacts service", err)
	case errors.As(err, &transportErr), errors.Is(err, ds.ErrEmptyResult):
		return huma.Error502BadGateway("contacts service unavailable", err)
	default:
		return err
	}
}
