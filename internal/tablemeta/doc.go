// Package tablemeta resolves the target table description a bulk upsert
// needs: column names in table order, the primary key, and how to read each
// column's value from a row.
//
// ReflectProvider reads struct tags of the row type:
//
//	type Person struct {
//		ID   int64  `db:"Id,pk"`
//		Name string `db:"Name"`
//		Skip string `db:"-"`
//	}
//
// Untagged exported fields map to a column of the same name. A field named Id
// or ID is the primary key when no field is tagged pk. The table name is the
// struct name unless the type has a TableName() string method, and the schema
// comes from an optional TableSchema() string method.
//
// LoadCatalog reads pg_catalog for map[string]any rows whose shape is only
// known at run time.
package tablemeta
