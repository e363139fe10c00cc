package domain

import (
	"github.com/shopspring/decimal"

	money "github.com/gtax/withholding-calculator/pkg/decimal"
)

// BracketRow is one row of the progressive scale: income past the annual
// threshold is taxed at Rate on top of the annual base amount.
type BracketRow struct {
	Rate            decimal.Decimal `yaml:"rate"`
	ThresholdAnnual money.Money     `yaml:"threshold_annual"`
	BaseAnnual      money.Money     `yaml:"base_annual"`
}

// ContributionRate is one fixed-rate withholding applied to gross pay.
type ContributionRate struct {
	Label string          `yaml:"label"`
	Rate  decimal.Decimal `yaml:"rate"`
}

// StatutoryRules bundles the fixed tables the engine computes against:
// the progressive bracket scale, the contribution rates, and the deduction
// catalog. Instances are read-only once built.
type StatutoryRules struct {
	Brackets      []BracketRow       `yaml:"brackets"`
	Contributions []ContributionRate `yaml:"contributions"`
	Deductions    Catalog            `yaml:"deductions"`
}

var default2010 = newDefault2010()

// Default2010 returns the statutory tables in force in January 2010. The
// returned rules are shared process-wide and must be treated as read-only.
func Default2010() *StatutoryRules {
	return default2010
}

func newDefault2010() *StatutoryRules {
	rate := decimal.RequireFromString
	nominal := func(s string) *money.Money {
		m := money.MustFromString(s)
		return &m
	}
	return &StatutoryRules{
		Brackets: []BracketRow{
			{Rate: rate("0.09"), ThresholdAnnual: money.MustFromString("0"), BaseAnnual: money.MustFromString("0")},
			{Rate: rate("0.14"), ThresholdAnnual: money.MustFromString("10000"), BaseAnnual: money.MustFromString("900")},
			{Rate: rate("0.19"), ThresholdAnnual: money.MustFromString("20000"), BaseAnnual: money.MustFromString("2300")},
			{Rate: rate("0.23"), ThresholdAnnual: money.MustFromString("30000"), BaseAnnual: money.MustFromString("4200")},
			{Rate: rate("0.27"), ThresholdAnnual: money.MustFromString("60000"), BaseAnnual: money.MustFromString("11100")},
			{Rate: rate("0.31"), ThresholdAnnual: money.MustFromString("90000"), BaseAnnual: money.MustFromString("19200")},
			{Rate: rate("0.35"), ThresholdAnnual: money.MustFromString("120000"), BaseAnnual: money.MustFromString("28500")},
		},
		Contributions: []ContributionRate{
			{Label: "Jubilación", Rate: rate("0.11")},
			{Label: "INSSJP", Rate: rate("0.03")},
			{Label: "Obra Social", Rate: rate("0.03")},
		},
		Deductions: Catalog{
			{Label: "Cónyuge", Nominal: nominal("10000"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Hijos", Nominal: nominal("5000"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Padres y otros", Nominal: nominal("3750"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Deducción especial (inc e)", Nominal: nominal("43200"), PayrollEmployee: true},
			{Label: "Deducción especial (inc c)", Nominal: nominal("9000"), SelfEmployed: true},
			{Label: "Ganancia no imponible", Nominal: nominal("9000"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Crédito hipotecario", Nominal: nominal("20000"), SelfEmployed: true, PayrollEmployee: true},
			{Label: "Seguro de vida", CapExpression: "996.23", SelfEmployed: true, PayrollEmployee: true},
			{Label: "Donaciones", CapExpression: "{gross_annual} * 0.05", SelfEmployed: true, PayrollEmployee: true},
			{Label: "Prepagas médicas", CapExpression: "{gross_annual} * 0.05", SelfEmployed: true, PayrollEmployee: true},
			{Label: "Honorarios de hospitalización", CapExpression: "{gross_annual} * 0.05", SelfEmployed: true, PayrollEmployee: true},
			{Label: "Gastos de sepelio", CapExpression: "996.23", SelfEmployed: true, PayrollEmployee: true},
			{Label: "Seguro de retiro privado", CapExpression: "1261.16", SelfEmployed: true, PayrollEmployee: true},
			{Label: "Empleados domésticos", Nominal: nominal("9000"), SelfEmployed: true, PayrollEmployee: true},
		},
	}
}
