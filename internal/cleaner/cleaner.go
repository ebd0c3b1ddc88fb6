// Package cleaner turns raw card export rows into canonical transactions.
package cleaner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/dateutils"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"

	"github.com/gocarina/gocsv"
	"golang.org/x/net/html/charset"
)

// Columns names the header of each column read from the export.
type Columns struct {
	Date        string
	Description string
	Debit       string
	Credit      string
	Amount      string
}

// DefaultColumns matches the common "Date,Description,Debit,Credit" layout.
func DefaultColumns() Columns {
	return Columns{Date: "Date", Description: "Description", Debit: "Debit", Credit: "Credit"}
}

// Options configures a Cleaner.
type Options struct {
	Columns Columns
	// Delimiter defaults to ','.
	Delimiter rune
	// Encoding is a charset label such as "utf-8" or "windows-1252".
	Encoding string
	// IncludeCredits keeps refund and payment rows. By default only money
	// spent is kept.
	IncludeCredits bool
}

// Result is the outcome of cleaning a whole file.
type Result struct {
	Header       []string
	Transactions []models.Transaction
	// Skipped counts malformed rows, with one ParseError each in Errors.
	Skipped int
	// Ignored counts well-formed credit rows dropped because credits are
	// not included.
	Ignored int
	Errors  []error
}

// Cleaner parses and normalizes card export rows.
type Cleaner struct {
	opts   Options
	logger logging.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(opts Options, logger logging.Logger) *Cleaner {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Encoding == "" {
		opts.Encoding = "utf-8"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cleaner{opts: opts, logger: logger}
}

// layout holds resolved column positions; -1 means absent.
type layout struct {
	date, description, debit, credit, amount int
}

func (c *Cleaner) resolveHeader(header []string) (layout, error) {
	find := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	cols := c.opts.Columns
	l := layout{
		date:        find(cols.Date),
		description: find(cols.Description),
		debit:       find(cols.Debit),
		credit:      find(cols.Credit),
		amount:      find(cols.Amount),
	}

	var missing []string
	if l.date < 0 {
		missing = append(missing, cols.Date)
	}
	if l.description < 0 {
		missing = append(missing, cols.Description)
	}
	if l.amount < 0 && l.debit < 0 {
		if cols.Amount != "" {
			missing = append(missing, cols.Amount)
		} else {
			missing = append(missing, cols.Debit)
		}
	}
	if len(missing) > 0 {
		return l, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return l, nil
}

// Read cleans every row of r. Malformed rows are skipped and counted. A
// missing or unusable header, or an I/O failure, returns a FatalIOError.
func (c *Cleaner) Read(r io.Reader) (*Result, error) {
	decoded, err := charset.NewReaderLabel(c.opts.Encoding, r)
	if err != nil {
		return nil, &apperrors.FatalIOError{Op: "decode input", Err: err}
	}

	reader := gocsv.LazyCSVReader(decoded)
	if cr, ok := reader.(*csv.Reader); ok {
		cr.Comma = c.opts.Delimiter
		cr.FieldsPerRecord = -1
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("empty input")
		}
		return nil, &apperrors.FatalIOError{Op: "read header", Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	l, err := c.resolveHeader(header)
	if err != nil {
		return nil, &apperrors.FatalIOError{Op: "read header", Err: err}
	}

	result := &Result{Header: header}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				c.skip(result, &apperrors.ParseError{Row: row, Field: "record", Err: err})
				continue
			}
			return nil, &apperrors.FatalIOError{Op: "read input", RowsProcessed: len(result.Transactions), Err: err}
		}
		if isBlank(record) {
			row--
			continue
		}

		tx, keep, err := c.clean(row, record, l)
		if err != nil {
			c.skip(result, err)
			continue
		}
		if !keep {
			result.Ignored++
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	c.logger.WithFields(
		logging.Field{Key: logging.FieldCount, Value: len(result.Transactions)},
		logging.Field{Key: "skipped", Value: result.Skipped},
		logging.Field{Key: "ignored", Value: result.Ignored},
	).Info("Cleaned transactions")

	return result, nil
}

func (c *Cleaner) skip(result *Result, err error) {
	result.Skipped++
	result.Errors = append(result.Errors, err)
	c.logger.WithError(err).Debug("Skipping malformed row")
}

// Clean normalizes a single record laid out as header. It reports whether
// the row should be kept; credit rows are dropped unless IncludeCredits.
func (c *Cleaner) Clean(row int, header, record []string) (models.Transaction, bool, error) {
	l, err := c.resolveHeader(header)
	if err != nil {
		return models.Transaction{}, false, &apperrors.FatalIOError{Op: "read header", Err: err}
	}
	return c.clean(row, record, l)
}

func (c *Cleaner) clean(row int, record []string, l layout) (models.Transaction, bool, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rawDate := field(l.date)
	date, _, err := dateutils.ParseDate(rawDate)
	if err != nil {
		return models.Transaction{}, false, &apperrors.ParseError{Row: row, Field: "date", Value: rawDate, Err: err}
	}

	rawDescription := field(l.description)
	description := NormalizeDescription(rawDescription)
	if description == "" {
		return models.Transaction{}, false, &apperrors.ParseError{Row: row, Field: "description", Value: rawDescription, Err: fmt.Errorf("empty description")}
	}

	amount, isCredit, err := c.amount(row, field(l.amount), field(l.debit), field(l.credit), l)
	if err != nil {
		return models.Transaction{}, false, err
	}
	if isCredit && !c.opts.IncludeCredits {
		return models.Transaction{}, false, nil
	}

	out := make([]string, len(record))
	copy(out, record)

	return models.Transaction{
		Row:            row,
		Date:           date,
		RawDescription: rawDescription,
		Description:    description,
		Keyword:        KeywordFor(description),
		Amount:         amount,
		Record:         out,
	}, true, nil
}
