package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Raw is what the extraction layer hands over for one report: field name to
// the untouched scraped value (a string, or a []string for list fields).
type Raw map[string]any

// Record is one snapshot of one report type for one subject (a DOT number).
//
// Records are values: once built by Schema.Apply (or decoded from storage)
// nothing mutates them, WithVersion returns a copy.
type Record struct {
	UUID        uuid.UUID
	ReportType  string
	SubjectKey  string
	// Version is 0 until the version store assigns one, append-only reports never get one.
	Version     int64
	ExtractedAt time.Time
	Fields      Fields
}

// Get returns the value of a field, nil if it is missing.
func (r Record) Get(name string) any {
	v, _ := r.Fields.Get(name)
	return v
}

func (r Record) WithVersion(version int64) Record {
	r.Fields = r.Fields.Clone()
	r.Version = version
	return r
}

func (r Record) String() string {
	return fmt.Sprintf("%s(dot_number=%s, version=%d, uuid=%s)", r.ReportType, r.SubjectKey, r.Version, r.UUID)
}

// Fields is an insertion ordered mapping of field name to an already validated value.
// Values are one of: nil, string, int64, float64, bool, []string.
type Fields struct {
	names  []string
	values map[string]any
}

func (f *Fields) Set(name string, value any) {
	if f.values == nil {
		f.values = map[string]any{}
	}
	if _, exists := f.values[name]; !exists {
		f.names = append(f.names, name)
	}
	f.values[name] = value
}

func (f Fields) Get(name string) (any, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f *Fields) Delete(name string) {
	if _, exists := f.values[name]; !exists {
		return
	}
	delete(f.values, name)
	for i, n := range f.names {
		if n == name {
			f.names = append(f.names[:i:i], f.names[i+1:]...)
			break
		}
	}
}

func (f Fields) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

func (f Fields) Len() int {
	return len(f.names)
}

func (f Fields) Clone() Fields {
	var out Fields
	for _, name := range f.names {
		v := f.values[name]
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out.Set(name, v)
	}
	return out
}

// Map returns a plain copy of the fields, handy for diffs and search documents.
func (f Fields) Map() map[string]any {
	out := make(map[string]any, len(f.names))
	for _, name := range f.names {
		out[name] = f.values[name]
	}
	return out
}

// MarshalJSON writes the fields as a json object, keeping field order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range f.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.values[name])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Body is the schemaless json body persisted next to the indexed columns.
func (r Record) Body() ([]byte, error) {
	return json.Marshal(r.Fields)
}
