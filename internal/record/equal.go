package record

import (
	"fmt"

	"fmcsa-backend/lib/textutil"

	"github.com/google/go-cmp/cmp"
)

// NullPolicy says what a comparison does when a field is missing on one side.
type NullPolicy int

const (
	// NullTolerant ignores the field when either side is missing it.
	NullTolerant NullPolicy = iota
	// NullStrict treats present on one side and missing on the other as a
	// difference. Missing on both sides is equal.
	NullStrict
)

func (p NullPolicy) String() string {
	switch p {
	case NullTolerant:
		return "tolerant"
	case NullStrict:
		return "strict"
	}
	return fmt.Sprintf("NullPolicy(%d)", int(p))
}

// Comparator compares two present values.
type Comparator func(a, b any) bool

func Exact(a, b any) bool {
	return cmp.Equal(a, b)
}

// Digits compares values by their decimal digits only, so "555-0100" and
// "(555) 0100" are the same telephone number.
func Digits(a, b any) bool {
	return textutil.Digits(fmt.Sprint(a)) == textutil.Digits(fmt.Sprint(b))
}

type Comparison struct {
	Field   string
	Compare Comparator
	Nulls   NullPolicy
}

// Compare builds one comparison per field with the same comparator and policy.
func Compare(compare Comparator, nulls NullPolicy, fields ...string) []Comparison {
	out := make([]Comparison, len(fields))
	for i, f := range fields {
		out[i] = Comparison{Field: f, Compare: compare, Nulls: nulls}
	}
	return out
}

// Equivalence is the content equality of a report type. Fields without a
// comparison are never looked at.
type Equivalence struct {
	Comparisons []Comparison
}

// EqualFunc is the equality the version store uses to skip unchanged snapshots.
type EqualFunc func(a, b Record) bool

func (e Equivalence) Equal(a, b Record) bool {
	for _, c := range e.Comparisons {
		if !c.equal(a.Get(c.Field), b.Get(c.Field)) {
			return false
		}
	}
	return true
}

// Diff lists the compared fields that differ between a and b.
func (e Equivalence) Diff(a, b Record) []string {
	var out []string
	for _, c := range e.Comparisons {
		if !c.equal(a.Get(c.Field), b.Get(c.Field)) {
			out = append(out, c.Field)
		}
	}
	return out
}

func (c Comparison) equal(a, b any) bool {
	aMissing, bMissing := missing(a), missing(b)
	switch {
	case aMissing && bMissing:
		return true
	case aMissing || bMissing:
		return c.Nulls == NullTolerant
	}
	compare := c.Compare
	if compare == nil {
		compare = Exact
	}
	return compare(a, b)
}

func missing(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	}
	return false
}
