package tablemeta

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

const tagName = "db"

// ReflectProvider builds table metadata from struct tags. Accessors are
// computed once per row type and cached.
type ReflectProvider struct {
	cache sync.Map // reflect.Type -> *pgbulk.Table
}

// NewReflectProvider creates a ReflectProvider.
func NewReflectProvider() *ReflectProvider {
	return &ReflectProvider{}
}

type tableNamer interface{ TableName() string }
type schemaNamer interface{ TableSchema() string }

// TableFor returns metadata for the struct type of shape, which may be a
// struct value or a pointer to one. The returned Table is a copy the caller
// may rename.
func (p *ReflectProvider) TableFor(shape any) (*pgbulk.Table, error) {
	t := reflect.TypeOf(shape)
	if t == nil {
		return nil, fmt.Errorf("cannot derive table from nil row: %w", pgbulk.ErrSchemaMismatch)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("row type %s is not a struct: %w", t, pgbulk.ErrSchemaMismatch)
	}

	if cached, ok := p.cache.Load(t); ok {
		tbl := *cached.(*pgbulk.Table)
		return &tbl, nil
	}

	tbl, err := buildTable(t)
	if err != nil {
		return nil, err
	}
	actual, _ := p.cache.LoadOrStore(t, tbl)
	out := *actual.(*pgbulk.Table)
	return &out, nil
}

func buildTable(t reflect.Type) (*pgbulk.Table, error) {
	tbl := &pgbulk.Table{Name: t.Name()}

	zero := reflect.New(t).Interface()
	if n, ok := zero.(tableNamer); ok {
		tbl.Name = n.TableName()
	}
	if s, ok := zero.(schemaNamer); ok {
		tbl.Schema = s.TableSchema()
	}

	tagged := false
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		tag, hasTag := f.Tag.Lookup(tagName)
		if tag == "-" {
			continue
		}
		if f.Anonymous && !hasTag && isStructOrPointer(f.Type) {
			continue
		}

		col := pgbulk.Column{Name: f.Name, Field: f.Name}
		if hasTag {
			name, opts, _ := strings.Cut(tag, ",")
			if name != "" {
				col.Name = name
			}
			for _, opt := range strings.Split(opts, ",") {
				switch strings.TrimSpace(opt) {
				case "pk":
					col.PrimaryKey = true
					tagged = true
				case "identity":
					col.Identity = true
				}
			}
		}
		col.Value = fieldAccessor(t, f.Index, f.Name)
		tbl.Columns = append(tbl.Columns, col)
	}

	if !tagged {
		for i := range tbl.Columns {
			if strings.EqualFold(tbl.Columns[i].Field, "id") {
				tbl.Columns[i].PrimaryKey = true
			}
		}
	}

	if err := tbl.Validate(); err != nil {
		return nil, fmt.Errorf("row type %s: %w", t, err)
	}
	return tbl, nil
}

// isStructOrPointer reports whether t is a struct or a pointer to one. Embedded
// fields of these kinds contribute their promoted fields instead of a column.
func isStructOrPointer(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// fieldAccessor returns a closure reading the field at index from rows of type t.
func fieldAccessor(t reflect.Type, index []int, name string) func(any) (any, error) {
	return func(row any) (any, error) {
		v := reflect.ValueOf(row)
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return nil, fmt.Errorf("nil %s row: %w", t, pgbulk.ErrInvalidInput)
			}
			v = v.Elem()
		}
		if v.Type() != t {
			return nil, fmt.Errorf("row of type %s in a set of %s: %w", v.Type(), t, pgbulk.ErrInvalidInput)
		}
		fv, err := v.FieldByIndexErr(index)
		if err != nil {
			// nil embedded pointer
			return nil, nil
		}
		return fv.Interface(), nil
	}
}
