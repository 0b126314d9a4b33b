package rowsource

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Format identifies an input file format.
type Format int

const (
	FormatCSV Format = iota
	FormatNDJSON
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatNDJSON:
		return "ndjson"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// FormatFor picks a format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".ndjson", ".jsonl", ".json":
		return FormatNDJSON, nil
	default:
		return 0, fmt.Errorf("cannot infer format of %q (want .csv, .ndjson, .jsonl or .json): %w", path, pgbulk.ErrInvalidInput)
	}
}

// File is an open row file. Rows may be iterated once.
type File struct {
	Path   string
	Format Format

	f    *os.File
	rows iter.Seq2[any, error]
}

// Open opens path and prepares a row stream for table.
// The caller must Close the file.
func Open(path string, table *pgbulk.Table) (*File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w: %w", path, pgbulk.ErrInvalidInput, err)
	}

	file := &File{Path: path, Format: format, f: f}
	switch format {
	case FormatCSV:
		file.rows = CSV(f, table)
	default:
		file.rows = NDJSON(f, table)
	}
	return file, nil
}

// Rows returns the row stream.
func (f *File) Rows() iter.Seq2[any, error] {
	return f.rows
}

func (f *File) Close() error {
	return f.f.Close()
}

// CSV streams rows from r. The first record is a header naming columns of
// table; columns absent from the header are NULL, as are empty fields.
func CSV(r io.Reader, table *pgbulk.Table) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		cr := csv.NewReader(r)
		cr.ReuseRecord = true

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(nil, inputError("header", err))
			return
		}

		cols, err := resolveHeader(table, header)
		if err != nil {
			yield(nil, err)
			return
		}

		for {
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, inputError("csv", err))
				return
			}
			line, _ := cr.FieldPos(0)

			row := make(map[string]any, len(cols))
			for i, field := range record {
				col := cols[i]
				if field == "" {
					row[col.Name] = nil
					continue
				}
				v, err := coerceString(col.DataType, field)
				if err != nil {
					yield(nil, inputError(fmt.Sprintf("line %d column %s", line, col.Name), err))
					return
				}
				row[col.Name] = v
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// NDJSON streams one JSON object per line from r. Keys must name columns of
// table; absent keys and JSON null are NULL. Blank lines are skipped.
func NDJSON(r io.Reader, table *pgbulk.Table) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		dec := json.NewDecoder(r)
		dec.UseNumber()

		for n := 1; ; n++ {
			var obj map[string]any
			err := dec.Decode(&obj)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, inputError(fmt.Sprintf("object %d", n), err))
				return
			}
			if obj == nil {
				yield(nil, inputError(fmt.Sprintf("object %d", n), errors.New("expected a JSON object")))
				return
			}

			row := make(map[string]any, len(obj))
			for key, raw := range obj {
				col, ok := table.Lookup(key)
				if !ok {
					yield(nil, inputError(fmt.Sprintf("object %d", n), fmt.Errorf("unknown column %q for table %s", key, table)))
					return
				}
				v, err := coerceJSON(col.DataType, raw)
				if err != nil {
					yield(nil, inputError(fmt.Sprintf("object %d column %s", n, col.Name), err))
					return
				}
				row[col.Name] = v
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func resolveHeader(table *pgbulk.Table, header []string) ([]pgbulk.Column, error) {
	cols := make([]pgbulk.Column, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		col, ok := table.Lookup(name)
		if !ok {
			return nil, inputError("header", fmt.Errorf("unknown column %q for table %s", name, table))
		}
		if seen[col.Name] {
			return nil, inputError("header", fmt.Errorf("column %q appears twice", col.Name))
		}
		seen[col.Name] = true
		cols[i] = col
	}
	return cols, nil
}

func inputError(where string, err error) error {
	return fmt.Errorf("%s: %w: %w", where, pgbulk.ErrInvalidInput, err)
}
