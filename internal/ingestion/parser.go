package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"PayLedger/internal/event"
	"PayLedger/internal/money"
)

// --- JSON wire format ---
// One transaction record per NATS message or HTTP request body:
//
//	{"type":"deposit","client":1,"tx":1,"amount":"1.5"}
//
// amount may be a JSON string or number and is truncated to 4 decimal places.

type recordJSON struct {
	Type   string               `json:"type"`
	Client *event.ClientID      `json:"client"`
	Tx     *event.TransactionID `json:"tx"`
	Amount *money.Money         `json:"amount,omitempty"`
}

// ParseRecord decodes one JSON transaction record. Unknown fields, a missing
// client or tx, and out-of-range ids are errors.
func ParseRecord(data []byte) (event.Transaction, error) {
	var j recordJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if j.Client == nil {
		return nil, fmt.Errorf("parse record: missing client")
	}
	if j.Tx == nil {
		return nil, fmt.Errorf("parse record: missing tx")
	}

	return buildRecord(j.Type, *j.Client, *j.Tx, j.Amount)
}

// MarshalRecord encodes tx in the JSON wire format.
func MarshalRecord(tx event.Transaction) ([]byte, error) {
	client, id := tx.Client(), tx.TxID()
	j := recordJSON{
		Type:   tx.Kind().String(),
		Client: &client,
		Tx:     &id,
	}

	switch t := tx.(type) {
	case *event.Deposit:
		j.Amount = &t.Amount
	case *event.Withdrawal:
		j.Amount = &t.Amount
	}

	return json.Marshal(j)
}

// buildRecord is shared by the CSV and JSON decoders.
func buildRecord(kindName string, client event.ClientID, tx event.TransactionID, amount *money.Money) (event.Transaction, error) {
	kind, err := event.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	return event.New(kind, client, tx, amount)
}
