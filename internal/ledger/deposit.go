package ledger

import (
	"PayLedger/internal/event"
	"PayLedger/internal/money"
)

// DisputeState of a stored deposit
type DisputeState uint8

const (
	DisputeNormal DisputeState = iota
	DisputeDisputed
)

func (s DisputeState) String() string {
	switch s {
	case DisputeNormal:
		return "normal"
	case DisputeDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// StoredDeposit is a successful deposit retained as a dispute candidate.
// Withdrawals are never stored.
type StoredDeposit struct {
	Client event.ClientID
	Amount money.Money
	State  DisputeState
}

// Disputed reports whether the deposit is currently under dispute.
func (d *StoredDeposit) Disputed() bool {
	return d.State == DisputeDisputed
}
