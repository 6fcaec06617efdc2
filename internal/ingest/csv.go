// Package ingest streams tabular rows from CSV and XLSX sources into the
// import pipeline.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a streamed tabular source: the header row plus a channel of
// data rows. Consumers must drain Rows, then check Err, which carries at
// most one error and is closed when streaming completes.
type Table struct {
	Header []string
	Rows   <-chan []string
	Err    <-chan error
}

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	LazyQuotes bool
}

// StreamCSV reads the header row synchronously, then streams the
// remaining rows on a channel. Fields are whitespace-trimmed and rows may
// have variable width.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	trimRow(header)

	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			trimRow(record)

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return &Table{Header: header, Rows: rowCh, Err: errCh}, nil
}

func trimRow(row []string) {
	for i, field := range row {
		row[i] = strings.TrimSpace(field)
	}
}
