package rowsource

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type family int

const (
	familyText family = iota
	familyInt
	familyFloat
	familyNumeric
	familyBool
	familyUUID
	familyDate
	familyTimestamp
	familyTime
	familyInterval
	familyJSON
	familyBytea
)

// classify maps a format_type() string such as "numeric(12,2)" or
// "timestamp(3) with time zone" to a coercion family.
func classify(dataType string) family {
	t := strings.ToLower(dataType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		if j := strings.IndexByte(t[i:], ')'); j >= 0 {
			t = t[:i] + t[i+j+1:]
		}
	}
	switch {
	case t == "smallint" || t == "integer" || t == "bigint":
		return familyInt
	case t == "real" || t == "double precision":
		return familyFloat
	case t == "numeric":
		return familyNumeric
	case t == "boolean":
		return familyBool
	case t == "uuid":
		return familyUUID
	case t == "date":
		return familyDate
	case strings.HasPrefix(t, "timestamp"):
		return familyTimestamp
	case strings.HasPrefix(t, "time"):
		return familyTime
	case strings.HasPrefix(t, "interval"):
		return familyInterval
	case t == "json" || t == "jsonb":
		return familyJSON
	case t == "bytea":
		return familyBytea
	default:
		return familyText
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// coerceString converts textual input for a column of the given type.
func coerceString(dataType, s string) (any, error) {
	if strings.HasSuffix(dataType, "[]") {
		return nil, fmt.Errorf("array column %s cannot be read from text; use NDJSON", dataType)
	}
	switch classify(dataType) {
	case familyInt:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case familyFloat:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	case familyNumeric:
		var n pgtype.Numeric
		if err := n.Scan(strings.TrimSpace(s)); err != nil {
			return nil, err
		}
		return n, nil
	case familyBool:
		return strconv.ParseBool(strings.TrimSpace(s))
	case familyUUID:
		var u pgtype.UUID
		if err := u.Scan(strings.TrimSpace(s)); err != nil {
			return nil, err
		}
		return u, nil
	case familyDate:
		return time.Parse(time.DateOnly, strings.TrimSpace(s))
	case familyTimestamp:
		return parseTimestamp(strings.TrimSpace(s))
	case familyTime:
		var tm pgtype.Time
		if err := tm.Scan(strings.TrimSpace(s)); err != nil {
			return nil, err
		}
		return tm, nil
	case familyInterval:
		var iv pgtype.Interval
		if err := iv.Scan(strings.TrimSpace(s)); err != nil {
			return nil, err
		}
		return iv, nil
	case familyJSON:
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("invalid JSON document")
		}
		return json.RawMessage(s), nil
	case familyBytea:
		if rest, ok := strings.CutPrefix(s, `\x`); ok {
			return hex.DecodeString(rest)
		}
		return []byte(s), nil
	default:
		return s, nil
	}
}

func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// coerceJSON converts a value decoded with json.Decoder.UseNumber.
func coerceJSON(dataType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if elem, ok := strings.CutSuffix(dataType, "[]"); ok {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a JSON array for %s, got %T", dataType, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerceJSON(elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}

	fam := classify(dataType)
	if fam == familyJSON {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	}

	switch x := v.(type) {
	case string:
		return coerceString(dataType, x)
	case json.Number:
		switch fam {
		case familyInt:
			return x.Int64()
		case familyFloat:
			return x.Float64()
		default:
			return coerceString(dataType, x.String())
		}
	case bool:
		if fam == familyBool {
			return x, nil
		}
		return coerceString(dataType, strconv.FormatBool(x))
	default:
		return nil, fmt.Errorf("cannot store JSON %T in a %s column", v, dataType)
	}
}
