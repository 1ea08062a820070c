package core

import (
	"fmt"
	"time"

	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
	"PayLedger/internal/observability"
)

// Engine applies transaction records to a ledger store, one at a time.
// It is single-threaded: callers must not invoke Apply concurrently on the
// same engine. Engines over different stores may share a processed set.
type Engine struct {
	store   *ledger.Store
	metrics *observability.Metrics
}

// NewEngine creates an engine over store. metrics may be nil.
func NewEngine(store *ledger.Store, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:   store,
		metrics: metrics,
	}
}

// Store returns the store the engine mutates.
func (e *Engine) Store() *ledger.Store {
	return e.store
}

// Apply validates and applies one record. On rejection it returns an error
// matching one of the Err* sentinels and the store is unchanged. Every check
// runs before the first mutation, so a transaction is all or nothing.
func (e *Engine) Apply(tx event.Transaction) error {
	start := time.Now()
	kind := tx.Kind().String()

	// Captured for the post-check: a locked account must never change
	before, existed := e.store.ExistingAccount(tx.Client())
	var snapshot ledger.Account
	if existed {
		snapshot = *before
	}

	var err error
	switch t := tx.(type) {
	case *event.Deposit:
		err = e.applyDeposit(t)
	case *event.Withdrawal:
		err = e.applyWithdrawal(t)
	case *event.Dispute:
		err = e.applyDispute(t)
	case *event.Resolve:
		err = e.applyResolve(t)
	case *event.Chargeback:
		err = e.applyChargeback(t)
	default:
		panic(fmt.Sprintf("FATAL: unhandled transaction type %T", tx))
	}

	if err != nil {
		if e.metrics != nil {
			e.metrics.TransactionsRejected.WithLabelValues(kind, RejectReason(err)).Inc()
		}
		return err
	}

	if err := e.postCheckInvariants(tx, existed, snapshot); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	if e.metrics != nil {
		e.metrics.TransactionsApplied.WithLabelValues(kind).Inc()
		e.metrics.ApplyDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}

	return nil
}

func (e *Engine) applyDeposit(d *event.Deposit) error {
	if !d.Amount.IsPositive() {
		return fmt.Errorf("%w: deposit %d amount %s", ErrInvalidAmount, d.ID, d.Amount)
	}
	if e.store.IsProcessed(d.ID) {
		return fmt.Errorf("%w: tx %d", ErrDuplicateTransaction, d.ID)
	}
	var current ledger.Account
	if acc, ok := e.store.ExistingAccount(d.ClientID); ok {
		if acc.Locked {
			return fmt.Errorf("%w: client %d", ErrAccountLocked, d.ClientID)
		}
		current = *acc
	}

	// Both available and total grow by the amount
	available, err := current.Available.AddChecked(d.Amount)
	if err != nil {
		return fmt.Errorf("%w: client %d available: %v", ErrBalanceOverflow, d.ClientID, err)
	}
	if _, err := available.AddChecked(current.Held); err != nil {
		return fmt.Errorf("%w: client %d total: %v", ErrBalanceOverflow, d.ClientID, err)
	}

	// First mutation; another store sharing the processed set may have
	// claimed the id since the check above
	if !e.store.MarkProcessed(d.ID) {
		return fmt.Errorf("%w: tx %d", ErrDuplicateTransaction, d.ID)
	}

	acc := e.store.AccountFor(d.ClientID)
	acc.Available = available
	e.store.RecordSuccessfulDeposit(d.ID, d.ClientID, d.Amount)
	return nil
}

func (e *Engine) applyWithdrawal(w *event.Withdrawal) error {
	if !w.Amount.IsPositive() {
		return fmt.Errorf("%w: withdrawal %d amount %s", ErrInvalidAmount, w.ID, w.Amount)
	}
	if e.store.IsProcessed(w.ID) {
		return fmt.Errorf("%w: tx %d", ErrDuplicateTransaction, w.ID)
	}

	acc, ok := e.store.ExistingAccount(w.ClientID)
	if !ok {
		return fmt.Errorf("%w: client %d", ErrAccountNotFound, w.ClientID)
	}
	if acc.Locked {
		return fmt.Errorf("%w: client %d", ErrAccountLocked, w.ClientID)
	}
	if acc.Available.Cmp(w.Amount) < 0 {
		return fmt.Errorf("%w: client %d has %s, needs %s",
			ErrInsufficientFunds, w.ClientID, acc.Available, w.Amount)
	}

	if !e.store.MarkProcessed(w.ID) {
		return fmt.Errorf("%w: tx %d", ErrDuplicateTransaction, w.ID)
	}

	acc.Available = acc.Available.Sub(w.Amount)
	return nil
}

func (e *Engine) applyDispute(d *event.Dispute) error {
	dep, acc, err := e.disputedDeposit(d.ID, d.ClientID, ledger.DisputeNormal)
	if err != nil {
		return err
	}

	// available may go negative if the funds were already withdrawn
	available, err := acc.Available.SubChecked(dep.Amount)
	if err != nil {
		return fmt.Errorf("%w: client %d available: %v", ErrBalanceOverflow, d.ClientID, err)
	}
	held, err := acc.Held.AddChecked(dep.Amount)
	if err != nil {
		return fmt.Errorf("%w: client %d held: %v", ErrBalanceOverflow, d.ClientID, err)
	}

	acc.Available = available
	acc.Held = held
	dep.State = ledger.DisputeDisputed
	return nil
}

func (e *Engine) applyResolve(r *event.Resolve) error {
	dep, acc, err := e.disputedDeposit(r.ID, r.ClientID, ledger.DisputeDisputed)
	if err != nil {
		return err
	}

	available, err := acc.Available.AddChecked(dep.Amount)
	if err != nil {
		return fmt.Errorf("%w: client %d available: %v", ErrBalanceOverflow, r.ClientID, err)
	}

	acc.Held = acc.Held.Sub(dep.Amount)
	acc.Available = available
	dep.State = ledger.DisputeNormal
	return nil
}

func (e *Engine) applyChargeback(c *event.Chargeback) error {
	dep, acc, err := e.disputedDeposit(c.ID, c.ClientID, ledger.DisputeDisputed)
	if err != nil {
		return err
	}

	// The deposit stays Disputed; the lock makes it unreachable
	acc.Held = acc.Held.Sub(dep.Amount)
	acc.Locked = true
	return nil
}

// disputedDeposit runs the checks shared by dispute, resolve and chargeback:
// the deposit exists, belongs to client, is in state want, and its owner is
// not locked. A client mismatch and a wrong state are both reported as
// ErrTransactionNotFound so another client's deposits stay invisible.
func (e *Engine) disputedDeposit(
	tx event.TransactionID,
	client event.ClientID,
	want ledger.DisputeState,
) (*ledger.StoredDeposit, *ledger.Account, error) {
	dep, ok := e.store.Deposit(tx)
	if !ok || dep.Client != client {
		return nil, nil, fmt.Errorf("%w: tx %d for client %d", ErrTransactionNotFound, tx, client)
	}
	if dep.State != want {
		return nil, nil, fmt.Errorf("%w: tx %d is %s, want %s", ErrTransactionNotFound, tx, dep.State, want)
	}

	acc, ok := e.store.ExistingAccount(client)
	if !ok {
		panic(fmt.Sprintf("FATAL: deposit %d has no account for client %d", tx, client))
	}
	if acc.Locked {
		return nil, nil, fmt.Errorf("%w: client %d", ErrAccountLocked, client)
	}

	return dep, acc, nil
}

// postCheckInvariants validates the touched account after a successful apply.
func (e *Engine) postCheckInvariants(tx event.Transaction, existed bool, before ledger.Account) error {
	if existed && before.Locked {
		return fmt.Errorf("%s %d applied to locked client %d", tx.Kind(), tx.TxID(), tx.Client())
	}

	acc, ok := e.store.ExistingAccount(tx.Client())
	if !ok {
		return fmt.Errorf("%s %d left client %d without an account", tx.Kind(), tx.TxID(), tx.Client())
	}
	if acc.Held.IsNegative() {
		return fmt.Errorf("client %d held %s is negative", tx.Client(), acc.Held)
	}
	if _, err := acc.Available.AddChecked(acc.Held); err != nil {
		return fmt.Errorf("client %d total: %v", tx.Client(), err)
	}

	return nil
}
