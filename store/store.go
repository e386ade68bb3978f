/*
Package store defines the persistence boundary for the fee engine.

PURPOSE:
  The billing engine is pure: it computes over materialized Contract and
  Payment snapshots. This package defines what the surrounding system
  must be able to read and write, without binding to a storage engine.

CONTRACT HISTORY IS APPEND-ONLY:
  Superseding a contract never edits the old record. AppendContract
  deactivates the previous active contract and inserts the new one with
  a later start date. "Which contract was active on date X" is a query
  over history, not a mutable flag race. Historical payments keep the
  rate that was active at their time.

PAYMENTS ARE MUTABLE:
  Unlike contracts, payments are operator-entered records: amount, date,
  and applied period can be corrected, and a payment can be deleted.
  Variance is recomputed by the engine on every read, so edits never
  leave stale derived values behind.

IMPLEMENTATIONS:
  - store/memory:  in-memory, for tests and dev
  - store/sqlite:  production SQLite
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/warp/fee-engine/billing"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClientNotFound   = errors.New("client not found")
	ErrContractNotFound = errors.New("contract not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicateID      = errors.New("duplicate id")
)

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the read/write surface the API layer needs. The billing
// engine itself never sees this interface.
type Store interface {
	// Clients
	SaveClient(ctx context.Context, c billing.Client) error
	GetClient(ctx context.Context, id billing.ClientID) (billing.Client, error)
	ListClients(ctx context.Context) ([]billing.Client, error)

	// Contracts (append-only supersession)

	// AppendContract validates the contract, deactivates the client's
	// current active contract, and appends the new one as active.
	AppendContract(ctx context.Context, c billing.Contract) error

	// ContractHistory returns all contracts for a client, oldest first.
	ContractHistory(ctx context.Context, clientID billing.ClientID) ([]billing.Contract, error)

	// ActiveContract returns the contract in effect as of the given
	// date: the latest start date not after asOf.
	ActiveContract(ctx context.Context, clientID billing.ClientID, asOf time.Time) (billing.Contract, error)

	// Payments
	RecordPayment(ctx context.Context, p billing.Payment) error
	UpdatePayment(ctx context.Context, p billing.Payment) error
	DeletePayment(ctx context.Context, id billing.PaymentID) error
	GetPayment(ctx context.Context, id billing.PaymentID) (billing.Payment, error)

	// Payments returns a client's full payment history, most recently
	// received first.
	Payments(ctx context.Context, clientID billing.ClientID) ([]billing.Payment, error)

	// Reset clears all data. Used by demo scenario loaders only.
	Reset(ctx context.Context) error
}

// ActiveOf picks the contract in effect as of a date from a history
// slice: the latest start date not after asOf. Shared by
// implementations so the supersession query has one definition.
func ActiveOf(history []billing.Contract, asOf time.Time) (billing.Contract, bool) {
	var best billing.Contract
	found := false
	for _, c := range history {
		if c.StartDate.IsZero() || c.StartDate.After(asOf) {
			continue
		}
		if !found || c.StartDate.After(best.StartDate) {
			best = c
			found = true
		}
	}
	return best, found
}
