package event

// Dispute claims that deposit ID was erroneous and holds its amount.
// The amount used is always the one recorded with the deposit.
type Dispute struct {
	ID       TransactionID
	ClientID ClientID
}

func (d *Dispute) TxID() TransactionID {
	return d.ID
}

func (d *Dispute) Client() ClientID {
	return d.ClientID
}

func (d *Dispute) Kind() Kind {
	return KindDispute
}

func (*Dispute) isTransaction() {}

// Resolve releases the hold of a disputed deposit back to available funds.
type Resolve struct {
	ID       TransactionID
	ClientID ClientID
}

func (r *Resolve) TxID() TransactionID {
	return r.ID
}

func (r *Resolve) Client() ClientID {
	return r.ClientID
}

func (r *Resolve) Kind() Kind {
	return KindResolve
}

func (*Resolve) isTransaction() {}

// Chargeback finalizes a disputed deposit: the held funds are removed and
// the account is locked.
type Chargeback struct {
	ID       TransactionID
	ClientID ClientID
}

func (c *Chargeback) TxID() TransactionID {
	return c.ID
}

func (c *Chargeback) Client() ClientID {
	return c.ClientID
}

func (c *Chargeback) Kind() Kind {
	return KindChargeback
}

func (*Chargeback) isTransaction() {}
