package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	money "github.com/gtax/withholding-calculator/pkg/decimal"
)

// stubContext backs cap formula placeholders with a fixed attribute map.
type stubContext map[string]string

func (c stubContext) Attribute(name string) (money.Money, bool) {
	raw, ok := c[name]
	if !ok {
		return money.Money{}, false
	}
	return money.MustFromString(raw), true
}

func TestResolveCapAbsent(t *testing.T) {
	def := DeductionDefinition{Label: "Cónyuge"}
	cap, err := ResolveCap(def, stubContext{})
	require.NoError(t, err)
	assert.True(t, cap.Equal(money.Unbounded()))
}

func TestResolveCapPlaceholder(t *testing.T) {
	def := DeductionDefinition{Label: "Donaciones", CapExpression: "{gross_annual} * 0.05"}
	ctx := stubContext{AttrGrossAnnual: "96000"}

	cap, err := ResolveCap(def, ctx)
	require.NoError(t, err)
	assert.Equal(t, "4800.00", cap.Round().String())
}

func TestResolveCapFixedAmount(t *testing.T) {
	def := DeductionDefinition{Label: "Seguro de vida", CapExpression: "996.23"}
	cap, err := ResolveCap(def, stubContext{})
	require.NoError(t, err)
	assert.Equal(t, "996.23", cap.String())
}

func TestResolveCapUnknownAttribute(t *testing.T) {
	def := DeductionDefinition{CapExpression: "{net_worth} * 0.05"}
	_, err := ResolveCap(def, stubContext{})
	assert.ErrorIs(t, err, ErrUnsafeCapExpression)
}

func TestResolveCapDisallowedCharacters(t *testing.T) {
	cases := []string{
		"996.23x",
		"996.23; 1",
		"os.system",
		"(1 + 2) * 3", // parentheses are outside the grammar
	}
	for _, expr := range cases {
		_, err := ResolveCap(DeductionDefinition{CapExpression: expr}, stubContext{})
		assert.ErrorIs(t, err, ErrUnsafeCapExpression, "expression %q", expr)
	}
}

func TestResolveCapArithmetic(t *testing.T) {
	cases := []struct{ expr, want string }{
		{"2 + 3 * 4", "14.00"},
		{"10 - 4 / 2", "8.00"},
		{"100 * 0.05 + 1", "6.00"},
		{"{quantity} / 2", "500.00"},
	}
	ctx := stubContext{AttrQuantity: "1000"}
	for _, c := range cases {
		got, err := ResolveCap(DeductionDefinition{CapExpression: c.expr}, ctx)
		require.NoError(t, err, "expression %q", c.expr)
		assert.Equal(t, c.want, got.Round().String(), "expression %q", c.expr)
	}
}

func TestResolveCapMalformed(t *testing.T) {
	cases := []string{
		"5 + + 3",
		"5 +",
		"* 3",
		"1.2.3 + 1",
	}
	for _, expr := range cases {
		_, err := ResolveCap(DeductionDefinition{CapExpression: expr}, stubContext{})
		assert.ErrorIs(t, err, ErrUnsafeCapExpression, "expression %q", expr)
	}
}

func TestResolveCapDivisionByZero(t *testing.T) {
	_, err := ResolveCap(DeductionDefinition{CapExpression: "100 / 0"}, stubContext{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsafeCapExpression)
}

func TestValidateCapExpression(t *testing.T) {
	for i, def := range Default2010().Deductions {
		assert.NoError(t, ValidateCapExpression(def), "catalog entry %d (%s)", i, def.Label)
	}

	bad := DeductionDefinition{CapExpression: "{gross_annual} * rate"}
	assert.ErrorIs(t, ValidateCapExpression(bad), ErrUnsafeCapExpression)

	unknown := DeductionDefinition{CapExpression: "{elsewhere}"}
	assert.ErrorIs(t, ValidateCapExpression(unknown), ErrUnsafeCapExpression)
}
