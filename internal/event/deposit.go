// internal/event/deposit.go
package event

import "PayLedger/internal/money"

// Deposit credits Amount to the client's available funds.
type Deposit struct {
	ID       TransactionID
	ClientID ClientID
	Amount   money.Money
}

func (d *Deposit) TxID() TransactionID {
	return d.ID
}

func (d *Deposit) Client() ClientID {
	return d.ClientID
}

func (d *Deposit) Kind() Kind {
	return KindDeposit
}

func (*Deposit) isTransaction() {}
