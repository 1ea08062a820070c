package ledger

import (
	"iter"
	"maps"
	"slices"

	"PayLedger/internal/event"
	"PayLedger/internal/money"
)

// Store owns the three ledger mappings: deposits by id, processed ids and
// accounts by client. It carries no business rules; validation lives in the
// engine. Not thread-safe.
type Store struct {
	// Successful deposits, retained so they can be disputed later
	deposits map[event.TransactionID]*StoredDeposit

	// Ids of successful deposits and withdrawals
	processed ProcessedSet

	accounts map[event.ClientID]*Account
}

// NewStore creates an empty store with a private processed set.
func NewStore() *Store {
	return NewStoreWithProcessed(NewMemoryProcessedSet())
}

// NewStoreWithProcessed creates an empty store that records processed ids
// in p. Several stores may share one SharedProcessedSet.
func NewStoreWithProcessed(p ProcessedSet) *Store {
	return &Store{
		deposits:  make(map[event.TransactionID]*StoredDeposit),
		processed: p,
		accounts:  make(map[event.ClientID]*Account),
	}
}

// AccountFor returns the client's account, inserting a zero, unlocked one
// if it does not exist.
func (s *Store) AccountFor(client event.ClientID) *Account {
	if acc, ok := s.accounts[client]; ok {
		return acc
	}
	acc := &Account{}
	s.accounts[client] = acc
	return acc
}

// ExistingAccount looks up an account without creating one.
func (s *Store) ExistingAccount(client event.ClientID) (*Account, bool) {
	acc, ok := s.accounts[client]
	return acc, ok
}

// Deposit returns the stored deposit for tx.
func (s *Store) Deposit(tx event.TransactionID) (*StoredDeposit, bool) {
	d, ok := s.deposits[tx]
	return d, ok
}

// RecordSuccessfulDeposit stores a deposit in the normal state.
// The caller guarantees tx was not processed before.
func (s *Store) RecordSuccessfulDeposit(tx event.TransactionID, client event.ClientID, amount money.Money) {
	s.deposits[tx] = &StoredDeposit{
		Client: client,
		Amount: amount,
		State:  DisputeNormal,
	}
}

// MarkProcessed records tx as consumed. It returns false if it already was.
func (s *Store) MarkProcessed(tx event.TransactionID) bool {
	return s.processed.Add(tx)
}

// IsProcessed reports whether tx has been consumed by a deposit or withdrawal.
func (s *Store) IsProcessed(tx event.TransactionID) bool {
	return s.processed.Contains(tx)
}

// Accounts yields every account as a copy. Order is unspecified; the
// sequence can be ranged over any number of times.
func (s *Store) Accounts() iter.Seq2[event.ClientID, Account] {
	return func(yield func(event.ClientID, Account) bool) {
		for client, acc := range s.accounts {
			if !yield(client, *acc) {
				return
			}
		}
	}
}

// Snapshots returns all accounts rendered and sorted by client id.
func (s *Store) Snapshots() []Snapshot {
	clients := slices.Sorted(maps.Keys(s.accounts))
	out := make([]Snapshot, 0, len(clients))
	for _, client := range clients {
		out = append(out, s.accounts[client].Snapshot(client))
	}
	return out
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	return len(s.accounts)
}

// DepositCount returns the number of retained deposits.
func (s *Store) DepositCount() int {
	return len(s.deposits)
}

// LockedCount returns the number of locked accounts.
func (s *Store) LockedCount() int {
	n := 0
	for _, acc := range s.accounts {
		if acc.Locked {
			n++
		}
	}
	return n
}

// MergeSnapshots combines per-shard snapshot lists whose client sets are
// disjoint into one list sorted by client id.
func MergeSnapshots(shards ...[]Snapshot) []Snapshot {
	var out []Snapshot
	for _, shard := range shards {
		out = append(out, shard...)
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		return int(a.Client) - int(b.Client)
	})
	return out
}
