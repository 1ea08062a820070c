package event

import "PayLedger/internal/money"

// Withdrawal debits Amount from the client's available funds.
type Withdrawal struct {
	ID       TransactionID
	ClientID ClientID
	Amount   money.Money
}

func (w *Withdrawal) TxID() TransactionID {
	return w.ID
}

func (w *Withdrawal) Client() ClientID {
	return w.ClientID
}

func (w *Withdrawal) Kind() Kind {
	return KindWithdrawal
}

func (*Withdrawal) isTransaction() {}
