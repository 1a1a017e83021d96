package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidators(t *testing.T) {
	testCases := []struct {
		name     string
		validate Validator
		in       any
		out      any
		fails    bool
	}{
		{name: "text", validate: CleanText, in: " a \n b ", out: "a b"},
		{name: "blank text", validate: CleanText, in: "   ", out: nil},
		{name: "text type", validate: CleanText, in: 12, fails: true},
		{name: "integer commas", validate: Integer, in: "12,345", out: int64(12345)},
		{name: "integer blank", validate: Integer, in: "", out: nil},
		{name: "integer bad", validate: Integer, in: "1.5", fails: true},
		{name: "float pct", validate: Float, in: "7.25%", out: 7.25},
		{name: "money", validate: Money, in: "$1,000,000**", out: "$1,000,000"},
		{name: "money bad", validate: Money, in: "1000", fails: true},
		{name: "date", validate: Date, in: "Date: 12/31/2023", out: "2023-12-31"},
		{name: "date iso", validate: Date, in: "2023-12-31", out: "2023-12-31"},
		{name: "date none", validate: Date, in: "None", out: nil},
		{name: "date bad", validate: Date, in: "13/45/2023", fails: true},
		{name: "bool yes", validate: Boolean, in: "yes", out: true},
		{name: "bool n", validate: Boolean, in: "N", out: false},
		{name: "bool bad", validate: Boolean, in: "maybe", fails: true},
		{name: "list", validate: List, in: []any{" a ", ""}, out: []string{"a"}},
		{name: "list nil", validate: List, in: nil, out: []string{}},
		{name: "max length", validate: MaxLength(3), in: "abcd", fails: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tc.validate(tc.in)
			if tc.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.out, out)
		})
	}
}
