package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 5, 17, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "2024-05-17T13:45:00Z", want},
		{"rfc3339 offset", "2024-05-17T15:45:00+02:00", want},
		{"fractional", "2024-05-17T13:45:00.000Z", want},
		{"no zone", "2024-05-17T13:45:00", want},
		{"space separated", "2024-05-17 13:45:00", want},
		{"date only", "2024-05-17", time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)},
		{"rfc1123z", "Fri, 17 May 2024 13:45:00 +0000", want},
		{"padded", "  2024-05-17T13:45:00Z ", want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"", "yesterday", "17/05/2024", "2024-13-01"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		errKind func(error) bool
	}{
		{"valid leaf", String("name", OpContains, "x"), nil},
		{"valid tree", Or(And(), And(Number("age", OpLte, 3), Date("at", OpBefore, time.Now()))), nil},
		{"empty combinators", And(Or(), And()), nil},
		{"nil", nil, IsInvalidFilter},
		{"nil child", Or(Boolean("ok", OpEq, true), nil), IsInvalidFilter},
		{"nil date leaf", (*DateFilter)(nil), IsInvalidFilter},
		{"nil string leaf child", And((*StringFilter)(nil)), IsInvalidFilter},
		{"nil number leaf child", Or(Number("n", OpEq, 1), (*NumberFilter)(nil)), IsInvalidFilter},
		{"nil boolean leaf child", And((*BooleanFilter)(nil)), IsInvalidFilter},
		{"nil or child", And((*OrFilter)(nil)), IsInvalidFilter},
		{"empty field", Number("", OpEq, 1), IsInvalidFilter},
		{"unknown operation", Boolean("ok", OpGt, true), IsUnknownOperation},
		{"nested unknown operation", And(Or(String("s", OpAfter, "x"))), IsUnknownOperation},
		{"string operand kind", &StringFilter{leaf{Field: "s", Operation: OpEq, Value: 1}}, IsTypeMismatch},
		{"number operand kind", &NumberFilter{leaf{Field: "n", Operation: OpEq, Value: "1"}}, IsTypeMismatch},
		{"missing operand", &BooleanFilter{leaf{Field: "b", Operation: OpEq}}, IsTypeMismatch},
		{"bad date operand", Date("at", OpAfter, "soon"), IsInvalidDate},
		{"date operand kind", Date("at", OpAfter, 1700000000), IsTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.filter)
			if tt.errKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, tt.errKind(err), "unexpected error: %v", err)
		})
	}
}

func TestOperations(t *testing.T) {
	assert.Equal(t, []Operation{OpContains, OpEndsWith, OpEq, OpStartsWith}, Operations(TypeString))
	assert.Equal(t, []Operation{OpEq, OpGt, OpGte, OpLt, OpLte}, Operations(TypeNumber))
	assert.Equal(t, []Operation{OpEq}, Operations(TypeBoolean))
	assert.Equal(t, []Operation{OpAfter, OpBefore, OpEq}, Operations(TypeDate))
	assert.Empty(t, Operations(TypeAnd))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindMissing, KindOf(nil))
	assert.Equal(t, KindString, KindOf(""))
	assert.Equal(t, KindNumber, KindOf(int32(1)))
	assert.Equal(t, KindBoolean, KindOf(false))
	assert.Equal(t, KindDate, KindOf(time.Time{}))
	assert.Equal(t, KindNested, KindOf(map[string]any{}))
	assert.Equal(t, KindUnknown, KindOf([]any{1}))
	assert.Equal(t, "undefined", KindMissing.String())
	assert.Equal(t, "object", KindNested.String())
}
