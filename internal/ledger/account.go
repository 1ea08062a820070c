package ledger

import (
	"encoding/binary"

	"PayLedger/internal/event"
	"PayLedger/internal/money"
)

// Account holds a client's balances.
// Total is always derived; it is never stored.
type Account struct {
	Available money.Money // Spendable funds, may go negative after a dispute
	Held      money.Money // Funds frozen by open disputes
	Locked    bool        // Terminal once set by a chargeback
}

// Total returns available + held
func (a Account) Total() money.Money {
	return a.Available.Add(a.Held)
}

// Snapshot is the rendered view of one account.
type Snapshot struct {
	Client    event.ClientID `json:"client"`
	Available money.Money    `json:"available"`
	Held      money.Money    `json:"held"`
	Total     money.Money    `json:"total"`
	Locked    bool           `json:"locked"`
}

// Snapshot captures the account for client
func (a Account) Snapshot(client event.ClientID) Snapshot {
	return Snapshot{
		Client:    client,
		Available: a.Available,
		Held:      a.Held,
		Total:     a.Total(),
		Locked:    a.Locked,
	}
}

// CanonicalBytes for deterministic hashing
func (s Snapshot) CanonicalBytes() []byte {
	buf := make([]byte, 0, 27)

	// client (2 bytes LE)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.Client))

	// available, held (8 bytes LE each)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Available.Units()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Held.Units()))

	// total is derived but hashed so a renderer bug shows up in the digest
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Total.Units()))

	if s.Locked {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	return buf
}
