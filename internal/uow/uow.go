package uow

import (
	"context"

	"github.com/yuzuhara/seatbook/internal/repository"
	postgres "github.com/yuzuhara/seatbook/internal/repository/postgres"
)

// UoW is the atomic unit every multi-record mutation flows through: slot
// writes, reservation records and user history commit together or not at all.
// The underlying store retries serialization conflicts a bounded number of
// times; fn is re-executed on each attempt.
type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. After a successful commit, it executes
// all after-commit hooks. Hooks registered by an attempt that did not commit
// are discarded.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Stores, after func(hook func(context.Context))) error,
) error {
	var hooks []func(context.Context)

	err := u.store.RunTx(ctx, nil, func(ctx context.Context, tx postgres.DB) error {
		hooks = hooks[:0]
		return fn(ctx, u.store.Bind(tx), func(h func(context.Context)) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
