// Package asqlite gives a single-threaded host application non-blocking
// access to an embedded SQLite database. All database work runs on one
// dedicated worker goroutine; callers submit operations and receive
// pollable, cancellable Task handles whose results are delivered through
// completion callbacks during Poll.
//
// The library supports:
//   - Asynchronous open/exec/fetch with bound parameters
//   - Batch inserts under a single connection-level transaction
//   - Transactions on dedicated connections, isolated from ad-hoc operations
//   - Incremental online backups with per-step progress reporting
//   - Cooperative cancellation of not-yet-started operations
//
// Example usage:
//
//	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
//	engine := asqlite.New(nil, logger)
//	defer engine.Close()
//
//	engine.Open("./app.db", func(res asqlite.Result) {
//	    if res.Err != nil {
//	        logger.Error("open failed", "error", res.Err)
//	        return
//	    }
//	    db := res.Conn
//	    db.Exec("insert into events (name) values (?1)", asqlite.Row{asqlite.Text("boot")}, nil)
//	})
//	engine.Poll(100 * time.Millisecond)
package asqlite

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ValueKind identifies which member of the Value union is populated.
type ValueKind int

const (
	// KindNull is the SQL NULL value.
	KindNull ValueKind = iota
	// KindInteger is a 64-bit signed integer.
	KindInteger
	// KindReal is a 64-bit floating point number.
	KindReal
	// KindText is a UTF-8 string.
	KindText
	// KindBlob is an arbitrary byte sequence.
	KindBlob
)

// String returns the lower-case kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a single database value: integer, real, text, blob or null.
// The zero Value is null.
type Value struct {
	kind ValueKind
	n    int64
	f    float64
	s    string
	b    []byte
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Integer wraps a 64-bit integer.
func Integer(v int64) Value { return Value{kind: KindInteger, n: v} }

// Real wraps a 64-bit float.
func Real(v float64) Value { return Value{kind: KindReal, f: v} }

// Text wraps a string.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Blob wraps a byte slice. The slice is not copied.
func Blob(v []byte) Value { return Value{kind: KindBlob, b: v} }

// Kind reports which member of the union is populated.
func (v Value) Kind() ValueKind { return v.kind }

// Int64 returns the integer member; zero for other kinds.
func (v Value) Int64() int64 { return v.n }

// Float64 returns the real member; zero for other kinds.
func (v Value) Float64() float64 { return v.f }

// Text returns the text member; empty for other kinds.
func (v Value) Text() string { return v.s }

// Blob returns the blob member; nil for other kinds.
func (v Value) Blob() []byte { return v.b }

// Any returns the populated member as a plain Go value:
// nil, int64, float64, string or []byte.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.n
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	}
	return nil
}

// String formats the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return fmt.Sprintf("integer(%d)", v.n)
	case KindReal:
		return fmt.Sprintf("real(%g)", v.f)
	case KindText:
		return fmt.Sprintf("text(%q)", v.s)
	case KindBlob:
		return fmt.Sprintf("blob(%d bytes)", len(v.b))
	}
	return "null"
}

// FromAny converts a generic host value into a Value. Supported inputs are
// nil, booleans, all signed and unsigned integer widths, floats, strings and
// byte slices. Anything else fails with an unsupported-value Error.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		if t {
			return Integer(1), nil
		}
		return Integer(0), nil
	case int:
		return Integer(int64(t)), nil
	case int8:
		return Integer(int64(t)), nil
	case int16:
		return Integer(int64(t)), nil
	case int32:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	case uint:
		return Integer(int64(t)), nil
	case uint8:
		return Integer(int64(t)), nil
	case uint16:
		return Integer(int64(t)), nil
	case uint32:
		return Integer(int64(t)), nil
	case uint64:
		if t > 1<<63-1 {
			return Null(), errUnsupportedValue(v)
		}
		return Integer(int64(t)), nil
	case float32:
		return Real(float64(t)), nil
	case float64:
		return Real(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Blob(t), nil
	}
	return Null(), errUnsupportedValue(v)
}

// driverValue maps the value onto the database driver's value set.
func (v Value) driverValue() driver.Value {
	switch v.kind {
	case KindInteger:
		return v.n
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	}
	return nil
}

// valueFromDriver converts a value produced by the driver back into the
// tagged union. SQLite reports TEXT and BLOB columns identically at the
// driver level, so the column's declared type decides between the two using
// SQLite's own affinity rule (CHAR, CLOB or TEXT in the declaration means
// text). Columns without a declaration, such as expressions, surface as
// blobs.
func valueFromDriver(dv driver.Value, declType string) Value {
	switch t := dv.(type) {
	case nil:
		return Null()
	case int64:
		return Integer(t)
	case float64:
		return Real(t)
	case bool:
		if t {
			return Integer(1)
		}
		return Integer(0)
	case string:
		return Text(t)
	case time.Time:
		return Text(t.Format(time.RFC3339Nano))
	case []byte:
		// The driver reuses its byte buffers between cursor steps.
		if hasTextAffinity(declType) {
			return Text(string(t))
		}
		return Blob(append([]byte(nil), t...))
	}
	return Null()
}

func hasTextAffinity(declType string) bool {
	decl := strings.ToUpper(declType)
	return strings.Contains(decl, "CHAR") ||
		strings.Contains(decl, "CLOB") ||
		strings.Contains(decl, "TEXT")
}

// Row is an ordered sequence of values; the order matches column order.
type Row []Value

// Rows is an ordered sequence of rows in result-set order.
type Rows []Row

// Columns holds the column names of a result set, aligned with Row positions.
type Columns []string

// NewRow builds a Row from generic host values via FromAny.
func NewRow(vals ...any) (Row, error) {
	row := make(Row, 0, len(vals))
	for _, v := range vals {
		value, err := FromAny(v)
		if err != nil {
			return nil, err
		}
		row = append(row, value)
	}
	return row, nil
}

// NewRows builds a Rows from slices of generic host values via FromAny.
func NewRows(rows ...[]any) (Rows, error) {
	out := make(Rows, 0, len(rows))
	for _, vals := range rows {
		row, err := NewRow(vals...)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// namedValues binds a parameter row for the driver; ordinals are 1-based.
func namedValues(params Row) []driver.NamedValue {
	if len(params) == 0 {
		return nil
	}
	out := make([]driver.NamedValue, len(params))
	for i, v := range params {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v.driverValue()}
	}
	return out
}
