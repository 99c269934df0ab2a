package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 4", 2},
		{"-3 + 5", 2},
		{"2 * -3", -6},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_FieldReferences(t *testing.T) {
	fields := map[string]interface{}{
		"Add_Number": 142,
		"St_Name":    "MAIN",
	}

	got, err := Eval("{Add_Number} % 2", fields)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = Eval("{St_Name} + ' ST'", fields)
	require.NoError(t, err)
	assert.Equal(t, "MAIN ST", got)
}

func TestEval_UnknownFieldFails(t *testing.T) {
	_, err := Eval("{Nope} + 1", map[string]interface{}{})
	assert.ErrorIs(t, err, ErrEval)
}

func TestEval_Functions(t *testing.T) {
	fields := map[string]interface{}{"St_Name": "main", "Add_Number": 142}

	tests := []struct {
		expr string
		want interface{}
	}{
		{"upper({St_Name})", "MAIN"},
		{"lower('ABC')", "abc"},
		{"trim('  x  ')", "x"},
		{"abs(-5)", 5.0},
		{"round(2.6)", 3.0},
		{"floor(2.6)", 2.0},
		{"ceil(2.1)", 3.0},
		{"sqrt(16)", 4.0},
		{"pow(2, 10)", 1024.0},
		{"min(3, 7)", 3.0},
		{"max(3, 7)", 7.0},
		{"concat({Add_Number}, ' ', upper({St_Name}))", "142 MAIN"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_DisallowedFunction(t *testing.T) {
	_, err := Eval("exec('rm')", nil)
	assert.ErrorIs(t, err, ErrEval)
}

func TestParse_RejectsBareIdentifiers(t *testing.T) {
	_, err := Parse("St_Name + 1")
	require.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "{St_Name}")
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []string{
		"1 +",
		"(1 + 2",
		"{unterminated",
		"'unterminated",
		"min(1, 2",
		"1 2",
		"",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestEval_DivisionByZero(t *testing.T) {
	_, err := Eval("1 / 0", nil)
	assert.ErrorIs(t, err, ErrEval)

	_, err = Eval("1 % 0", nil)
	assert.ErrorIs(t, err, ErrEval)
}

func TestInterpolate(t *testing.T) {
	fields := map[string]interface{}{
		"St_Name":   "MAIN",
		"St_PosTyp": "ST",
		"Add_Number": 142,
	}

	assert.Equal(t, "142 MAIN ST", Interpolate("{Add_Number} {St_Name} {St_PosTyp}", fields))

	// missing tokens drop out and whitespace collapses
	assert.Equal(t, "MAIN ST", Interpolate("{St_PreDir} {St_Name} {St_PosTyp}", fields))

	// text outside tokens is kept
	assert.Equal(t, "NAME: MAIN", Interpolate("NAME: {St_Name}", fields))
}
