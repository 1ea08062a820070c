package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"PayLedger/internal/event"
	"PayLedger/internal/money"
	"PayLedger/internal/observability"
)

var csvHeader = []string{"type", "client", "tx", "amount"}

// CSVSource streams transaction records from CSV with the header
// type,client,tx,amount. Fields are trimmed; the amount column may be empty
// or missing entirely for dispute, resolve and chargeback rows.
//
// Any malformed row aborts the stream with an error naming the row; the
// input's structure is not trusted past that point.
type CSVSource struct {
	r       io.Reader
	name    string
	metrics *observability.Metrics
}

// NewCSVSource reads from r. name identifies the input in errors and
// metrics. metrics may be nil.
func NewCSVSource(r io.Reader, name string, metrics *observability.Metrics) *CSVSource {
	return &CSVSource{r: r, name: name, metrics: metrics}
}

// Run parses rows and sends them to out in file order.
func (s *CSVSource) Run(ctx context.Context, out chan<- event.Transaction) error {
	reader := csv.NewReader(s.r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return s.fail(1, err)
	}
	if err := checkHeader(header); err != nil {
		return s.fail(1, err)
	}

	for row := 2; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return s.fail(row, err)
		}

		tx, err := parseCSVRow(fields)
		if err != nil {
			return s.fail(row, err)
		}

		if err := send(ctx, out, tx); err != nil {
			return err
		}
	}
}

func (s *CSVSource) fail(row int, err error) error {
	if s.metrics != nil {
		s.metrics.IngestErrors.WithLabelValues("csv").Inc()
	}
	return fmt.Errorf("%s: row %d: %w", s.name, row, err)
}

func checkHeader(fields []string) error {
	if len(fields) < 3 || len(fields) > len(csvHeader) {
		return fmt.Errorf("bad header %q, want %q", fields, strings.Join(csvHeader, ","))
	}
	for i, f := range fields {
		if strings.TrimSpace(f) != csvHeader[i] {
			return fmt.Errorf("bad header %q, want %q", fields, strings.Join(csvHeader, ","))
		}
	}
	return nil
}

func parseCSVRow(fields []string) (event.Transaction, error) {
	if len(fields) < 3 || len(fields) > 4 {
		return nil, fmt.Errorf("expected 3 or 4 fields, got %d", len(fields))
	}

	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	tx, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("tx: %w", err)
	}

	var amount *money.Money
	if len(fields) == 4 {
		if s := strings.TrimSpace(fields[3]); s != "" {
			m, err := money.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("amount: %w", err)
			}
			amount = &m
		}
	}

	return buildRecord(fields[0], event.ClientID(client), event.TransactionID(tx), amount)
}

// WriteCSVRecords writes records in the input CSV format. Used by the
// workload generator.
func WriteCSVRecords(w io.Writer, records []event.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	row := make([]string, 4)
	for _, tx := range records {
		row[0] = tx.Kind().String()
		row[1] = strconv.FormatUint(uint64(tx.Client()), 10)
		row[2] = strconv.FormatUint(uint64(tx.TxID()), 10)
		row[3] = ""
		switch t := tx.(type) {
		case *event.Deposit:
			row[3] = t.Amount.String()
		case *event.Withdrawal:
			row[3] = t.Amount.String()
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
