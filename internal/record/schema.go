package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindDate
	KindList
)

// Field describes one field of a report: how raw values are validated, what
// is used when the value is absent, and whether it may be missing at all.
type Field struct {
	Name       string
	Kind       Kind
	Validators []Validator
	Default    any
	Nullable   bool
}

func Text(name string, maxLength int) Field {
	return Field{
		Name:       name,
		Kind:       KindText,
		Validators: []Validator{CleanText, MaxLength(maxLength)},
		Nullable:   true,
	}
}

func IntegerField(name string) Field {
	return Field{Name: name, Kind: KindInteger, Validators: []Validator{Integer}, Nullable: true}
}

func FloatField(name string) Field {
	return Field{Name: name, Kind: KindFloat, Validators: []Validator{Float}, Nullable: true}
}

func BoolField(name string) Field {
	return Field{Name: name, Kind: KindBool, Validators: []Validator{Boolean}, Nullable: true}
}

func DateField(name string) Field {
	return Field{Name: name, Kind: KindDate, Validators: []Validator{Date}, Nullable: true}
}

func MoneyField(name string) Field {
	return Field{Name: name, Kind: KindText, Validators: []Validator{Money, MaxLength(128)}, Nullable: true}
}

func ListField(name string) Field {
	return Field{Name: name, Kind: KindList, Validators: []Validator{List}, Default: []string{}, Nullable: true}
}

// Schema describes one report type.
type Schema struct {
	Name  string
	Table string
	// Versioned reports keep a numbered history per subject, the others are
	// append-only and deduplicated on NaturalKey.
	Versioned  bool
	NaturalKey []string
	Fields     []Field
	// Equivalence decides whether two versioned snapshots carry the same content.
	Equivalence Equivalence
	// Deprecated fields are dropped wherever they are found.
	Deprecated []string
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Apply validates raw scraped values into a new unversioned record.
// It stops at the first invalid field.
func (s Schema) Apply(subjectKey string, raw Raw, extractedAt time.Time) (Record, error) {
	subjectKey, err := NormalizeSubjectKey(subjectKey)
	if err != nil {
		return Record{}, err
	}

	for name := range raw {
		if slices.Contains(s.Deprecated, name) {
			continue
		}
		if _, ok := s.Field(name); !ok {
			return Record{}, &InvalidFieldError{
				ReportType: s.Name,
				Field:      name,
				Value:      raw[name],
				Err:        errors.New("unknown field"),
			}
		}
	}

	rec := Record{
		ReportType:  s.Name,
		SubjectKey:  subjectKey,
		ExtractedAt: extractedAt.UTC(),
	}
	for _, f := range s.Fields {
		value, present := raw[f.Name]
		if !present {
			value = f.Default
		}
		for _, validate := range f.Validators {
			value, err = validate(value)
			if err != nil {
				return Record{}, &InvalidFieldError{ReportType: s.Name, Field: f.Name, Value: raw[f.Name], Err: err}
			}
		}
		if value == nil && !f.Nullable {
			return Record{}, &InvalidFieldError{
				ReportType: s.Name,
				Field:      f.Name,
				Err:        errors.New("required"),
			}
		}
		rec.Fields.Set(f.Name, value)
	}

	rec.UUID, err = uuid.NewV7()
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Decode rebuilds a stored record from its json body. Values are coerced by
// field kind, deprecated fields are dropped and fields this schema doesn't know
// about are kept as they were stored.
func (s Schema) Decode(id uuid.UUID, subjectKey string, version int64, extractedAt time.Time, body []byte) (Record, error) {
	rec := Record{
		UUID:        id,
		ReportType:  s.Name,
		SubjectKey:  subjectKey,
		Version:     version,
		ExtractedAt: extractedAt.UTC(),
	}

	var stored map[string]any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&stored); err != nil {
		return Record{}, fmt.Errorf("decode %s body: %w", s.Name, err)
	}

	for _, f := range s.Fields {
		value, err := coerce(f.Kind, stored[f.Name])
		if err != nil {
			return Record{}, fmt.Errorf("decode %s.%s: %w", s.Name, f.Name, err)
		}
		if value == nil && f.Kind == KindList {
			value = []string{}
		}
		rec.Fields.Set(f.Name, value)
		delete(stored, f.Name)
	}

	extra := make([]string, 0, len(stored))
	for name := range stored {
		if !slices.Contains(s.Deprecated, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	for _, name := range extra {
		value, err := coerceAny(stored[name])
		if err != nil {
			return Record{}, fmt.Errorf("decode %s.%s: %w", s.Name, name, err)
		}
		rec.Fields.Set(name, value)
	}
	return rec, nil
}

func coerce(kind Kind, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case KindText, KindDate:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil
	case KindInteger:
		n, ok := value.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", value)
		}
		return n.Int64()
	case KindFloat:
		n, ok := value.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", value)
		}
		return n.Float64()
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return b, nil
	case KindList:
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", value)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list entry, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown field kind %d", kind)
}

func coerceAny(value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		return v.Float64()
	case []any:
		return coerce(KindList, v)
	}
	return value, nil
}

// NaturalKeyValues returns the natural key values of an append-only record in
// NaturalKey order, missing values are the empty string.
func (s Schema) NaturalKeyValues(r Record) []string {
	out := make([]string, len(s.NaturalKey))
	for i, name := range s.NaturalKey {
		switch v := r.Get(name).(type) {
		case nil:
		case string:
			out[i] = v
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// Equal reports whether two records carry the same content under this schema's equivalence.
func (s Schema) Equal(a, b Record) bool {
	return s.Equivalence.Equal(a, b)
}
