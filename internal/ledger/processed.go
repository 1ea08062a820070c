package ledger

import (
	"PayLedger/internal/event"

	"github.com/puzpuzpuz/xsync/v4"
)

// ProcessedSet records the ids consumed by deposits and withdrawals.
// Ids are global across clients.
type ProcessedSet interface {
	// Contains reports whether tx has been consumed
	Contains(tx event.TransactionID) bool

	// Add claims tx. It returns false, and changes nothing, if tx was
	// already present.
	Add(tx event.TransactionID) bool

	// Len returns the number of consumed ids
	Len() int
}

// MemoryProcessedSet is a plain map.
// Not thread-safe: owned by one store driven by one goroutine.
type MemoryProcessedSet struct {
	ids map[event.TransactionID]struct{}
}

func NewMemoryProcessedSet() *MemoryProcessedSet {
	return &MemoryProcessedSet{ids: make(map[event.TransactionID]struct{})}
}

func (s *MemoryProcessedSet) Contains(tx event.TransactionID) bool {
	_, ok := s.ids[tx]
	return ok
}

func (s *MemoryProcessedSet) Add(tx event.TransactionID) bool {
	if _, ok := s.ids[tx]; ok {
		return false
	}
	s.ids[tx] = struct{}{}
	return true
}

func (s *MemoryProcessedSet) Len() int {
	return len(s.ids)
}

// SharedProcessedSet is safe for concurrent use by several stores, one per
// worker. Add is an atomic claim, so two workers racing on the same id
// cannot both win.
type SharedProcessedSet struct {
	ids *xsync.Map[event.TransactionID, struct{}]
}

func NewSharedProcessedSet() *SharedProcessedSet {
	return &SharedProcessedSet{ids: xsync.NewMap[event.TransactionID, struct{}]()}
}

func (s *SharedProcessedSet) Contains(tx event.TransactionID) bool {
	_, ok := s.ids.Load(tx)
	return ok
}

func (s *SharedProcessedSet) Add(tx event.TransactionID) bool {
	_, loaded := s.ids.LoadOrStore(tx, struct{}{})
	return !loaded
}

func (s *SharedProcessedSet) Len() int {
	return s.ids.Size()
}
