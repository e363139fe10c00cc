package config

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtax/withholding-calculator/internal/domain"
	money "github.com/gtax/withholding-calculator/pkg/decimal"
)

func TestNewRulesParser(t *testing.T) {
	parser := NewRulesParser()
	assert.NotNil(t, parser)
}

func TestLoadFromFile_Success(t *testing.T) {
	testRules := "brackets:\n" +
		"  - rate: \"0.09\"\n" +
		"    threshold_annual: \"0\"\n" +
		"    base_annual: \"0\"\n" +
		"  - rate: \"0.14\"\n" +
		"    threshold_annual: \"10000\"\n" +
		"    base_annual: \"900\"\n\n" +
		"contributions:\n" +
		"  - label: \"Jubilación\"\n" +
		"    rate: \"0.11\"\n\n" +
		"deductions:\n" +
		"  - label: \"Cónyuge\"\n" +
		"    nominal: \"10000\"\n" +
		"    self_employed: true\n" +
		"    payroll_employee: true\n" +
		"  - label: \"Hijos\"\n" +
		"    nominal: \"5000\"\n" +
		"    self_employed: true\n" +
		"    payroll_employee: true\n" +
		"  - label: \"Padres y otros\"\n" +
		"    nominal: \"3750\"\n" +
		"    self_employed: true\n" +
		"    payroll_employee: true\n" +
		"  - label: \"Deducción especial (inc e)\"\n" +
		"    nominal: \"43200\"\n" +
		"    payroll_employee: true\n" +
		"  - label: \"Deducción especial (inc c)\"\n" +
		"    nominal: \"9000\"\n" +
		"    self_employed: true\n" +
		"  - label: \"Ganancia no imponible\"\n" +
		"    nominal: \"9000\"\n" +
		"    self_employed: true\n" +
		"    payroll_employee: true\n" +
		"  - label: \"Donaciones\"\n" +
		"    cap: \"{gross_annual} * 0.05\"\n" +
		"    self_employed: true\n" +
		"    payroll_employee: true\n"

	tmpfile, err := os.CreateTemp("", "test_rules_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())
	_, err = tmpfile.WriteString(testRules)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	parser := NewRulesParser()
	rules, err := parser.LoadFromFile(tmpfile.Name())
	require.NoError(t, err)

	require.Len(t, rules.Brackets, 2)
	assert.True(t, rules.Brackets[1].Rate.Equal(decimal.RequireFromString("0.14")))
	assert.Equal(t, "10000.00", rules.Brackets[1].ThresholdAnnual.String())

	require.Len(t, rules.Contributions, 1)
	assert.Equal(t, "Jubilación", rules.Contributions[0].Label)

	require.Len(t, rules.Deductions, 7)
	spouse, err := rules.Deductions.Lookup(domain.Spouse)
	require.NoError(t, err)
	require.NotNil(t, spouse.Nominal)
	assert.Equal(t, "10000.00", spouse.Nominal.String())
	donations := rules.Deductions[6]
	assert.Nil(t, donations.Nominal)
	assert.Equal(t, "{gross_annual} * 0.05", donations.CapExpression)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	parser := NewRulesParser()
	_, err := parser.LoadFromFile("/nonexistent/rules.yaml")
	assert.Error(t, err)
}

func TestValidateRules_Default2010(t *testing.T) {
	parser := NewRulesParser()
	assert.NoError(t, parser.ValidateRules(domain.Default2010()))
}

func validRules() *domain.StatutoryRules {
	nominal := func(s string) *money.Money {
		m := money.MustFromString(s)
		return &m
	}
	return &domain.StatutoryRules{
		Brackets: []domain.BracketRow{
			{Rate: decimal.RequireFromString("0.09"), ThresholdAnnual: money.Zero(), BaseAnnual: money.Zero()},
			{Rate: decimal.RequireFromString("0.14"), ThresholdAnnual: money.NewFromInt(10000), BaseAnnual: money.NewFromInt(900)},
		},
		Contributions: []domain.ContributionRate{
			{Label: "Jubilación", Rate: decimal.RequireFromString("0.11")},
		},
		Deductions: domain.Catalog{
			{Label: "Cónyuge", Nominal: nominal("10000"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Hijos", Nominal: nominal("5000"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Padres y otros", Nominal: nominal("3750"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Deducción especial (inc e)", Nominal: nominal("43200"), PayrollEmployee: true},
			{Label: "Deducción especial (inc c)", Nominal: nominal("9000"), SelfEmployed: true},
			{Label: "Ganancia no imponible", Nominal: nominal("9000"), SelfEmployed: true, PayrollEmployee: true},
		},
	}
}

func TestValidateRules_Failures(t *testing.T) {
	parser := NewRulesParser()
	nominal := func(s string) *money.Money {
		m := money.MustFromString(s)
		return &m
	}

	t.Run("empty brackets", func(t *testing.T) {
		rules := validRules()
		rules.Brackets = nil
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("first threshold not zero", func(t *testing.T) {
		rules := validRules()
		rules.Brackets[0].ThresholdAnnual = money.NewFromInt(100)
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("thresholds not increasing", func(t *testing.T) {
		rules := validRules()
		rules.Brackets[1].ThresholdAnnual = money.Zero()
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("bracket rate out of range", func(t *testing.T) {
		rules := validRules()
		rules.Brackets[1].Rate = decimal.RequireFromString("1.4")
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("contribution rate out of range", func(t *testing.T) {
		rules := validRules()
		rules.Contributions[0].Rate = decimal.NewFromInt(1)
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("contribution label missing", func(t *testing.T) {
		rules := validRules()
		rules.Contributions[0].Label = ""
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("catalog too short for mandatory deductions", func(t *testing.T) {
		rules := validRules()
		rules.Deductions = rules.Deductions[:3]
		err := parser.ValidateRules(rules)
		assert.ErrorIs(t, err, domain.ErrInvalidDeductionIndex)
	})

	t.Run("mandatory deduction without nominal", func(t *testing.T) {
		rules := validRules()
		rules.Deductions[domain.NonTaxableMinimum].Nominal = nil
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("deduction with neither nominal nor cap", func(t *testing.T) {
		rules := validRules()
		rules.Deductions = append(rules.Deductions, domain.DeductionDefinition{Label: "Vacía"})
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("negative nominal", func(t *testing.T) {
		rules := validRules()
		rules.Deductions[0].Nominal = nominal("-1")
		assert.Error(t, parser.ValidateRules(rules))
	})

	t.Run("unsafe cap expression is fatal at load", func(t *testing.T) {
		rules := validRules()
		rules.Deductions = append(rules.Deductions, domain.DeductionDefinition{
			Label:         "Donaciones",
			CapExpression: "{gross_annual} * rate",
		})
		err := parser.ValidateRules(rules)
		assert.ErrorIs(t, err, domain.ErrUnsafeCapExpression)
	})
}
