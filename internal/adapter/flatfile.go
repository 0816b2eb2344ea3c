// Package adapter turns heterogeneous pantry sources into sequences of raw
// candidates keyed by canonical field name. Two adapters exist: a flat-file
// adapter that guesses columns from header spellings, and a remote-list
// adapter driven by an administrator-supplied column mapping.
package adapter

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sharedharvest/pantry-directory/internal/model"
	"github.com/sharedharvest/pantry-directory/internal/normalize"
)

// headerEchoSentinel marks rows that are export artifacts rather than data:
// a repeated header row carries the raw column token in its name cell.
const headerEchoSentinel = "pantry_name"

// CityUnknown is the city filled in when a row has an address but no city.
const CityUnknown = "Unknown"

const minNameLength = 3

// FlatFileOptions configures the flat-file adapter.
type FlatFileOptions struct {
	// DefaultState is filled in for accepted rows missing a state column.
	DefaultState string
}

// FlatFile resolves delimited-text or spreadsheet uploads into raw
// candidates via the header alias table.
type FlatFile struct {
	table *AliasTable
	opts  FlatFileOptions
}

// NewFlatFile creates a flat-file adapter with the embedded alias table.
func NewFlatFile(opts FlatFileOptions) (*FlatFile, error) {
	table, err := LoadAliasTable()
	if err != nil {
		return nil, err
	}
	return &FlatFile{table: table, opts: opts}, nil
}

// Parse reads an uploaded file and returns raw candidates in row order plus
// the per-row skips produced by the adapter heuristics. A file that cannot
// be parsed at all returns a MalformedFileError and no candidates.
func (f *FlatFile) Parse(data []byte) ([]model.RawCandidate, []model.Rejection, error) {
	var (
		rows []map[string]string
		err  error
	)
	if isZip(data) {
		rows, err = readXLSX(data)
	} else {
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, nil, err
	}

	candidates := make([]model.RawCandidate, 0, len(rows))
	var skips []model.Rejection
	for i, row := range rows {
		pos := i + 1
		cand, reason := f.resolveRow(pos, row)
		if reason != "" {
			skips = append(skips, model.Rejection{Position: pos, Reason: reason})
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, skips, nil
}

// resolveRow maps one header-keyed row to a candidate, applying the name
// heuristics and the default state / unknown city fills. A non-empty reason
// means the row is skipped.
func (f *FlatFile) resolveRow(pos int, row map[string]string) (model.RawCandidate, string) {
	resolved := f.table.Resolve(row)

	cand := model.RawCandidate{Position: pos}
	for field, value := range resolved {
		cand.Set(field, normalize.Text(value))
	}

	name := cand.Get(model.FieldName)
	switch {
	case name == "":
		return cand, "name column missing or empty"
	case strings.Contains(name, headerEchoSentinel) || f.table.IsHeaderEcho(name):
		return cand, "name is a header artifact"
	case normalize.DigitsOnly(name):
		return cand, "name contains only digits"
	case utf8.RuneCountInString(name) < minNameLength:
		return cand, "name shorter than 3 characters"
	}

	if cand.Get(model.FieldState) == "" && f.opts.DefaultState != "" {
		cand.Set(model.FieldState, f.opts.DefaultState)
	}
	if cand.Get(model.FieldCity) == "" && cand.Get(model.FieldAddress) != "" {
		cand.Set(model.FieldCity, CityUnknown)
	}
	return cand, ""
}

// readCSV parses comma-delimited UTF-8 text with double-quote quoting,
// doubled-quote escaping, and embedded newlines in quoted fields. The first
// row is the header; rows with fewer cells than the header are padded with
// absent values.
func readCSV(data []byte) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, MalformedFileError{Cause: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, MalformedFileError{Cause: err}
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// isZip sniffs the PK zip magic that opens an XLSX workbook.
func isZip(data []byte) bool {
	return len(data) >= 2 && data[0] == 'P' && data[1] == 'K'
}

// MalformedFileError means the upload could not be parsed as delimited text
// or a workbook at all. Fatal for the run; zero records touched.
type MalformedFileError struct {
	Cause error
}

func (e MalformedFileError) Error() string {
	return "adapter: malformed file: " + e.Cause.Error()
}

func (e MalformedFileError) Unwrap() error { return e.Cause }
