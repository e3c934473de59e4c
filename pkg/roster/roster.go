// Package roster reads person rosters and writes result records as CSV.
//
// An input roster has a header row naming the columns Surname, Name,
// Patronymic and BirthDate in any order (matched case-insensitively). Birth
// dates are dd.mm.yyyy or yyyy-mm-dd. The output has one row per record with
// columns sorted alphabetically by field name.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

// Input column names.
const (
	ColumnSurname    = "Surname"
	ColumnName       = "Name"
	ColumnPatronymic = "Patronymic"
	ColumnBirthDate  = "BirthDate"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing roster column")

var birthDateLayouts = []string{fssp.DateLayout, "2006-01-02"}

// Reader reads persons from a roster source.
type Reader interface {
	Read() ([]fssp.Person, error)
}

// Writer writes result records to a sink.
type Writer interface {
	Write(records []fssp.Record) error
}

// CSVReader reads a CSV roster.
type CSVReader struct {
	r io.Reader
}

// NewCSVReader creates a roster reader over r.
func NewCSVReader(r io.Reader) *CSVReader {
	return &CSVReader{r: r}
}

// Read parses every data row. Blank rows are skipped. Patronymic and
// BirthDate may be empty; Surname and Name may not.
func (c *CSVReader) Read() ([]fssp.Person, error) {
	reader := csv.NewReader(c.r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []fssp.Person{}, nil
		}
		return nil, fmt.Errorf("read roster header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	persons := []fssp.Person{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster line %d: %w", line, err)
		}
		if blank(row) {
			continue
		}

		p, err := parsePerson(row, idx)
		if err != nil {
			return nil, fmt.Errorf("roster line %d: %w", line, err)
		}
		persons = append(persons, p)
	}

	return persons, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		for _, col := range []string{ColumnSurname, ColumnName, ColumnPatronymic, ColumnBirthDate} {
			if strings.EqualFold(h, col) {
				idx[col] = i
			}
		}
	}
	for _, col := range []string{ColumnSurname, ColumnName} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return idx, nil
}

func parsePerson(row []string, idx map[string]int) (fssp.Person, error) {
	field := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	p := fssp.Person{
		LastName:   field(ColumnSurname),
		FirstName:  field(ColumnName),
		Patronymic: field(ColumnPatronymic),
	}
	if p.LastName == "" || p.FirstName == "" {
		return p, fmt.Errorf("surname and name are required")
	}

	if s := field(ColumnBirthDate); s != "" {
		d, err := parseDate(s)
		if err != nil {
			return p, err
		}
		p.BirthDate = d
	}
	return p, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range birthDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid birth date %q (want dd.mm.yyyy or yyyy-mm-dd)", s)
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// CSVWriter writes records as CSV.
type CSVWriter struct {
	w io.Writer
}

// NewCSVWriter creates a record writer over w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

// Columns returns the output columns in order.
func Columns() []string {
	cols := make([]string, 0, 6)
	for k := range (fssp.Record{}).Fields() {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Write emits a header followed by one row per record.
func (c *CSVWriter) Write(records []fssp.Record) error {
	cols := Columns()
	writer := csv.NewWriter(c.w)

	if err := writer.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cols))
	for i, rec := range records {
		fields := rec.Fields()
		for j, col := range cols {
			row[j] = fields[col]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
