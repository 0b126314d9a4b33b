package staging

import (
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// rowSource adapts a single-pass row iterator to pgx.CopyFromSource.
// Only the current row is held; values are extracted on demand in column order.
type rowSource struct {
	next    func() (any, error, bool)
	stop    func()
	columns []pgbulk.Column
	row     any
	values  []any
	n       int64
	err     error
	onRow   func(n int64)
}

var _ pgx.CopyFromSource = (*rowSource)(nil)

func newRowSource(rows iter.Seq2[any, error], columns []pgbulk.Column) *rowSource {
	if rows == nil {
		rows = func(func(any, error) bool) {}
	}
	next, stop := iter.Pull2(rows)
	return &rowSource{
		next:    next,
		stop:    stop,
		columns: columns,
		values:  make([]any, len(columns)),
	}
}

func (s *rowSource) Next() bool {
	if s.err != nil {
		return false
	}
	row, err, ok := s.next()
	if !ok {
		return false
	}
	s.n++
	if err != nil {
		s.err = fmt.Errorf("row %d: %w", s.n, err)
		return false
	}
	s.row = row
	return true
}

func (s *rowSource) Values() ([]any, error) {
	for i, c := range s.columns {
		v, err := c.Value(s.row)
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", s.n, c.Name, err)
		}
		s.values[i] = v
	}
	if s.onRow != nil {
		s.onRow(s.n)
	}
	return s.values, nil
}

func (s *rowSource) Err() error {
	return s.err
}
