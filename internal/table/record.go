package table

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Record is one row keyed by column name. It keeps column order so JSON
// output matches the table layout.
type Record struct {
	keys   []string
	values []any
}

// Keys returns the column names in order
func (r Record) Keys() []string {
	return r.keys
}

// Get returns the value for key (nil when absent or null)
func (r Record) Get(key string) any {
	for i, k := range r.keys {
		if k == key {
			return r.values[i]
		}
	}
	return nil
}

// GetString returns the value for key rendered as text
func (r Record) GetString(key string) string {
	switch v := r.Get(key).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// MarshalJSON writes the record as an ordered JSON object
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, preserving key order
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}
	r.keys = r.keys[:0]
	r.values = r.values[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		r.keys = append(r.keys, key)
		r.values = append(r.values, v)
	}
	_, err = dec.Token()
	return err
}

// NewRecord builds a record from parallel key/value slices
func NewRecord(keys []string, values []any) Record {
	return Record{keys: keys, values: values}
}

// Records converts every row to a Record. Cells of numeric columns become
// float64, other present cells strings, nulls nil.
func (t *Table) Records() []Record {
	kinds := make([]Kind, len(t.columns))
	for i, c := range t.columns {
		kinds[i] = t.Kind(c)
	}
	out := make([]Record, 0, len(t.rows))
	for _, row := range t.rows {
		keys := make([]string, len(t.columns))
		copy(keys, t.columns)
		values := make([]any, len(row))
		for i, v := range row {
			switch {
			case v.IsNull():
				values[i] = nil
			case kinds[i] == KindNumeric:
				f, _ := v.Float()
				values[i] = f
			default:
				values[i] = v.String()
			}
		}
		out = append(out, Record{keys: keys, values: values})
	}
	return out
}
