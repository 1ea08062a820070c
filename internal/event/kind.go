package event

import (
	"fmt"
	"strings"

	"PayLedger/internal/money"
)

// ClientID identifies an account holder.
type ClientID uint16

// TransactionID is unique across the whole input stream, not per client.
type TransactionID uint32

// Kind discriminator for transaction records
type Kind int32

const (
	KindUnknown Kind = iota
	KindDeposit
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback}

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindDispute:
		return "dispute"
	case KindResolve:
		return "resolve"
	case KindChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// ParseKind maps the lowercase wire name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSpace(s) {
	case "deposit":
		return KindDeposit, nil
	case "withdrawal":
		return KindWithdrawal, nil
	case "dispute":
		return KindDispute, nil
	case "resolve":
		return KindResolve, nil
	case "chargeback":
		return KindChargeback, nil
	default:
		return KindUnknown, fmt.Errorf("unknown transaction type: %q", s)
	}
}

// Transaction is the interface all transaction records implement.
// The set of implementations is closed: Deposit, Withdrawal, Dispute,
// Resolve and Chargeback.
type Transaction interface {
	// TxID returns the transaction id the record carries (for dispute-class
	// records this is the id of the referenced deposit)
	TxID() TransactionID

	// Client returns the client the record names
	Client() ClientID

	// Kind returns the discriminator
	Kind() Kind

	isTransaction()
}

// New builds the record for kind. amount is required for deposits and
// withdrawals and ignored for the dispute-class kinds.
func New(kind Kind, client ClientID, tx TransactionID, amount *money.Money) (Transaction, error) {
	switch kind {
	case KindDeposit, KindWithdrawal:
		if amount == nil {
			return nil, fmt.Errorf("%s %d: amount is required", kind, tx)
		}
		if kind == KindDeposit {
			return &Deposit{ID: tx, ClientID: client, Amount: *amount}, nil
		}
		return &Withdrawal{ID: tx, ClientID: client, Amount: *amount}, nil
	case KindDispute:
		return &Dispute{ID: tx, ClientID: client}, nil
	case KindResolve:
		return &Resolve{ID: tx, ClientID: client}, nil
	case KindChargeback:
		return &Chargeback{ID: tx, ClientID: client}, nil
	default:
		return nil, fmt.Errorf("unknown transaction kind %d", kind)
	}
}
