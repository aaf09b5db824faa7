package uow

import (
	"context"

	domainbooking "partyspace/internal/domain/booking"
)

// UnitOfWork scopes interval store access to one transaction.
type UnitOfWork interface {
	Bookings() domainbooking.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (sessions, tx handles)
// repositories must find in the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}
