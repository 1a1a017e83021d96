package record

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fmcsa-backend/lib/textutil"
)

var ErrInvalidField = errors.New("invalid field")

// InvalidFieldError names the first field that failed validation.
type InvalidFieldError struct {
	ReportType string
	Field      string
	Value      any
	Err        error
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %s.%s (%v): %v", e.ReportType, e.Field, e.Value, e.Err)
}

func (e *InvalidFieldError) Unwrap() error {
	return e.Err
}

func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// Validator normalizes one raw value. Returning a nil value means the field
// is missing.
type Validator func(value any) (any, error)

func asString(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	default:
		return "", false, fmt.Errorf("expected text, got %T", value)
	}
}

// CleanText collapses whitespace and turns blank strings into nil.
func CleanText(value any) (any, error) {
	s, ok, err := asString(value)
	if err != nil || !ok {
		return nil, err
	}
	s = textutil.NormalizeWhitespace(s)
	if s == "" {
		return nil, nil
	}
	return s, nil
}

func MaxLength(n int) Validator {
	return func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		if utf8.RuneCountInString(s) > n {
			return nil, fmt.Errorf("longer than %d characters", n)
		}
		return s, nil
	}
}

// Integer parses counts like "1,234".
func Integer(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	s, ok, err := asString(value)
	if err != nil || !ok {
		return nil, err
	}
	s = strings.ReplaceAll(textutil.NormalizeWhitespace(s), ",", "")
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %w", err)
	}
	return n, nil
}

// Float parses percentages like "12.5%".
func Float(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	}
	s, ok, err := asString(value)
	if err != nil || !ok {
		return nil, err
	}
	s = strings.TrimSuffix(textutil.NormalizeWhitespace(s), "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %w", err)
	}
	return f, nil
}

var moneyPattern = regexp.MustCompile(`^(\$[\d,]+)\**$`)

// Money keeps the dollar amount of values like "$750,000*" and rejects
// anything else that isn't blank.
func Money(value any) (any, error) {
	s, ok, err := asString(value)
	if err != nil || !ok {
		return nil, err
	}
	s = textutil.NormalizeWhitespace(s)
	if s == "" {
		return nil, nil
	}
	m := moneyPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("not a dollar amount: %q", s)
	}
	return m[1], nil
}

var datePattern = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// Date accepts MM/DD/YYYY anywhere in the value (or an already normalized
// YYYY-MM-DD) and normalizes it to YYYY-MM-DD.
func Date(value any) (any, error) {
	s, ok, err := asString(value)
	if err != nil || !ok {
		return nil, err
	}
	s = textutil.NormalizeWhitespace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	if m := datePattern.FindString(s); m != "" {
		t, err := time.Parse("01/02/2006", m)
		if err != nil {
			return nil, fmt.Errorf("bad date: %w", err)
		}
		return t.Format(time.DateOnly), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("bad date %q", s)
	}
	return t.Format(time.DateOnly), nil
}

// Boolean accepts Y, YES, N and NO in any case.
func Boolean(value any) (any, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	s, ok, err := asString(value)
	if err != nil || !ok {
		return nil, err
	}
	switch strings.ToUpper(textutil.NormalizeWhitespace(s)) {
	case "":
		return nil, nil
	case "Y", "YES":
		return true, nil
	case "N", "NO":
		return false, nil
	}
	return nil, fmt.Errorf("not a yes/no value: %q", s)
}

// List cleans every entry of a list field and drops blank ones.
func List(value any) (any, error) {
	var items []string
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case []string:
		items = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected text list entry, got %T", item)
			}
			items = append(items, s)
		}
	case string:
		items = []string{v}
	default:
		return nil, fmt.Errorf("expected list, got %T", value)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = textutil.NormalizeWhitespace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}
