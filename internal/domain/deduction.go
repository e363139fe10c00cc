package domain

import (
	"fmt"

	money "github.com/gtax/withholding-calculator/pkg/decimal"
)

// Catalog positions for the statutory deductions (Art. 23). Position is the
// stable identifier; the catalog order never changes within a rules set.
const (
	Spouse = iota
	Children
	ParentsAndOthers
	SpecialPayroll
	SpecialSelfEmployed
	NonTaxableMinimum
	MortgageInterest
	LifeInsurance
	Donations
	PrivateHealthcare
	HospitalizationFees
	FuneralExpenses
	RetirementInsurance
	DomesticStaff
)

// DeductionDefinition is a catalog template for one statutory deduction kind.
// At least one of Nominal and CapExpression must be present; the effective
// usable amount in any context is min(nominal-or-override, resolved cap),
// with an absent cap resolving to the unbounded sentinel.
type DeductionDefinition struct {
	// Label is the display name; it never participates in computation.
	Label string `yaml:"label"`

	// Nominal is the fixed statutory amount, when one exists.
	Nominal *money.Money `yaml:"nominal,omitempty"`

	// CapExpression optionally bounds the usable amount. It is a formula over
	// the restricted grammar described in ResolveCap.
	CapExpression string `yaml:"cap,omitempty"`

	// Applicability by employment mode. Informational for the presenting
	// layer; the engine selects its mandatory deductions by position.
	SelfEmployed    bool `yaml:"self_employed"`
	PayrollEmployee bool `yaml:"payroll_employee"`
}

// Catalog is the fixed ordered set of deduction kinds. It is built once per
// process and never mutated afterwards; consumers attach value copies of its
// entries rather than sharing them.
type Catalog []DeductionDefinition

// Lookup returns the definition at the given catalog position.
func (c Catalog) Lookup(index int) (DeductionDefinition, error) {
	if index < 0 || index >= len(c) {
		return DeductionDefinition{}, fmt.Errorf("%w: %d outside [0, %d)", ErrInvalidDeductionIndex, index, len(c))
	}
	return c[index], nil
}
