package tablemeta

import "github.com/vvka-141/pgbulk/pkg/pgbulk"

// Static is a MetadataProvider that always returns the same table.
type Static struct {
	Table *pgbulk.Table
}

// TableFor returns a copy of the fixed table regardless of shape.
func (s Static) TableFor(any) (*pgbulk.Table, error) {
	if err := s.Table.Validate(); err != nil {
		return nil, err
	}
	tbl := *s.Table
	return &tbl, nil
}
