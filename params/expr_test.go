package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constLookup(env map[string]float64) func(string) (float64, bool) {
	return func(name string) (float64, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-4 / 2", -2},
		{"2 ^ 3 ^ 2", 512}, // right associative
		{"10 - 4 - 3", 3},  // left associative
		{"1.5e2 + 0.5", 150.5},
	}

	for _, tt := range tests {
		v, err := Eval(tt.expr, constLookup(nil))
		require.NoError(t, err, tt.expr)
		assert.InDelta(t, tt.want, v, 1e-12, tt.expr)
	}
}

func TestEvalFunctions(t *testing.T) {
	v, err := Eval("exp(0) + sqrt(9) + min(4, 2) + max(1, 5) + abs(-2)", constLookup(nil))
	require.NoError(t, err)
	assert.InDelta(t, 1+3+2+5+2, v, 1e-12)
}

func TestEvalNamedReferences(t *testing.T) {
	env := map[string]float64{
		"f_min":                    2.52,
		"cardio_control_params.HR": 70,
	}

	v, err := Eval("f_min * 2 + cardio_control_params.HR", constLookup(env))
	require.NoError(t, err)
	assert.InDelta(t, 75.04, v, 1e-12)
}

func TestEvalUnknownName(t *testing.T) {
	_, err := Eval("nope + 1", constLookup(nil))
	assert.Error(t, err)
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval("1 / 0", constLookup(nil))
	assert.Error(t, err)
}

func TestEvalTrailingInput(t *testing.T) {
	_, err := Eval("1 + 2 )", constLookup(nil))
	assert.Error(t, err)
}
