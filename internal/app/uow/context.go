package uow

import (
	"context"
	"errors"
)

// ErrNoFactory is returned by helpers that must open a unit but were given no factory.
var ErrNoFactory = errors.New("uow: no unit of work factory configured")

type unitKey struct{}

// WithUnit binds unit to ctx so nested handlers join it instead of opening their own.
func WithUnit(ctx context.Context, unit UnitOfWork) context.Context {
	if unit == nil {
		return ctx
	}
	return context.WithValue(ctx, unitKey{}, unit)
}

// UnitFrom returns the unit bound by WithUnit.
func UnitFrom(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(unitKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}
