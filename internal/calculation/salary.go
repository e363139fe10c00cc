package calculation

import (
	"fmt"

	"github.com/gtax/withholding-calculator/internal/domain"
	money "github.com/gtax/withholding-calculator/pkg/decimal"
)

// Contribution is one fixed-rate withholding line: label plus the amount
// derived from the record's gross pay.
type Contribution struct {
	Label  string
	Amount money.Money
}

// AppliedDeduction is a per-record value copy of a catalog definition,
// optionally carrying a quantity override. Copying on attach is what keeps an
// override on one record from leaking into every other record holding the
// same deduction kind; the catalog itself is never written after startup.
type AppliedDeduction struct {
	Index      int
	Definition domain.DeductionDefinition
	Quantity   *money.Money
}

// SalaryRecord represents one month's gross pay, the deductions applied to
// it, and its withheld income tax once the annual pass has run.
type SalaryRecord struct {
	gross    money.Money
	applied  []AppliedDeduction
	withheld *money.Money
	rules    *domain.StatutoryRules
}

// NewSalaryRecord creates a record for one month's gross pay. A nil rules
// argument selects the built-in 2010 tables.
func NewSalaryRecord(gross money.Money, rules *domain.StatutoryRules) *SalaryRecord {
	if rules == nil {
		rules = domain.Default2010()
	}
	return &SalaryRecord{gross: gross, rules: rules}
}

// Gross returns the month's gross pay.
func (s *SalaryRecord) Gross() money.Money {
	return s.gross
}

// AppliedDeductions returns the deductions currently attached, in attach
// order.
func (s *SalaryRecord) AppliedDeductions() []AppliedDeduction {
	out := make([]AppliedDeduction, len(s.applied))
	copy(out, s.applied)
	return out
}

// AttachDeduction attaches the catalog entry at index with its configured
// nominal amount.
func (s *SalaryRecord) AttachDeduction(index int) error {
	return s.attach(index, nil)
}

// AttachDeductionQuantity attaches the catalog entry at index with a custom
// quantity. The override is held by this record only.
func (s *SalaryRecord) AttachDeductionQuantity(index int, quantity money.Money) error {
	return s.attach(index, &quantity)
}

func (s *SalaryRecord) attach(index int, quantity *money.Money) error {
	def, err := s.rules.Deductions.Lookup(index)
	if err != nil {
		return err
	}
	s.applied = append(s.applied, AppliedDeduction{Index: index, Definition: def, Quantity: quantity})
	return nil
}

// DetachDeduction removes the first applied entry for the given catalog
// index. Detaching a deduction the record does not hold is an error.
func (s *SalaryRecord) DetachDeduction(index int) error {
	if _, err := s.rules.Deductions.Lookup(index); err != nil {
		return err
	}
	for i, ad := range s.applied {
		if ad.Index == index {
			s.applied = append(s.applied[:i], s.applied[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: index %d", domain.ErrDeductionNotApplied, index)
}

// EffectiveDeductionAmount is min(quantity-or-nominal, resolved cap) for one
// applied deduction, evaluated against this record. A cap-only definition
// without an override contributes its full cap.
func (s *SalaryRecord) EffectiveDeductionAmount(ad AppliedDeduction) (money.Money, error) {
	capAmount, err := domain.ResolveCap(ad.Definition, capContext{record: s, applied: ad})
	if err != nil {
		return money.Zero(), err
	}
	basis := ad.Quantity
	if basis == nil {
		basis = ad.Definition.Nominal
	}
	if basis == nil {
		return capAmount, nil
	}
	return money.Min(*basis, capAmount), nil
}

// capContext exposes the record's salary attributes and the applied
// deduction's configured quantity to cap formula placeholders.
type capContext struct {
	record  *SalaryRecord
	applied AppliedDeduction
}

func (c capContext) Attribute(name string) (money.Money, bool) {
	switch name {
	case domain.AttrGrossMonthly:
		return c.record.gross, true
	case domain.AttrGrossAnnual:
		return c.record.gross.Annual(), true
	case domain.AttrQuantity:
		if c.applied.Quantity != nil {
			return *c.applied.Quantity, true
		}
		if c.applied.Definition.Nominal != nil {
			return *c.applied.Definition.Nominal, true
		}
		return money.Zero(), true
	}
	return money.Money{}, false
}

// Contributions returns the fixed-rate withholdings for this record, one per
// table row, each as rate × gross.
func (s *SalaryRecord) Contributions() []Contribution {
	out := make([]Contribution, 0, len(s.rules.Contributions))
	for _, c := range s.rules.Contributions {
		out = append(out, Contribution{Label: c.Label, Amount: s.gross.Mul(c.Rate)})
	}
	return out
}

// ContributionTotal sums the record's fixed-rate withholdings.
func (s *SalaryRecord) ContributionTotal() money.Money {
	total := money.Zero()
	for _, c := range s.Contributions() {
		total = total.Add(c.Amount)
	}
	return total
}

// WithheldTax returns the month's computed income tax. It fails until the
// annual computation pass has stored a value.
func (s *SalaryRecord) WithheldTax() (money.Money, error) {
	if s.withheld == nil {
		return money.Zero(), domain.ErrTaxNotComputed
	}
	return *s.withheld, nil
}

func (s *SalaryRecord) setWithheldTax(tax money.Money) {
	s.withheld = &tax
}

// NetPay is gross minus contributions minus withheld tax.
func (s *SalaryRecord) NetPay() (money.Money, error) {
	tax, err := s.WithheldTax()
	if err != nil {
		return money.Zero(), err
	}
	return s.gross.Sub(s.ContributionTotal()).Sub(tax), nil
}

// Operand is either a plain Amount or another *SalaryRecord; for a record
// only its gross amount participates in composition.
type Operand interface {
	amount() money.Money
}

// Amount adapts a monetary value for use as a composition operand.
type Amount money.Money

func (a Amount) amount() money.Money { return money.Money(a) }

func (s *SalaryRecord) amount() money.Money { return s.gross }

func (s *SalaryRecord) clone() *SalaryRecord {
	dup := &SalaryRecord{gross: s.gross, rules: s.rules}
	dup.applied = append([]AppliedDeduction(nil), s.applied...)
	if s.withheld != nil {
		w := *s.withheld
		dup.withheld = &w
	}
	return dup
}

// Add returns a new record whose gross is the sum of this record's gross and
// the operand. Applied deductions and any stored tax are carried over, never
// recomputed; composition is a bonus/averaging convenience, not a substitute
// for the annual pass.
func (s *SalaryRecord) Add(other Operand) *SalaryRecord {
	dup := s.clone()
	dup.gross = s.gross.Add(other.amount())
	return dup
}

// Scale returns a new record with gross multiplied by the operand.
func (s *SalaryRecord) Scale(factor Operand) *SalaryRecord {
	dup := s.clone()
	dup.gross = s.gross.Mul(factor.amount().Decimal)
	return dup
}

// Divide returns a new record with gross divided by the operand.
func (s *SalaryRecord) Divide(divisor Operand) (*SalaryRecord, error) {
	d := divisor.amount()
	if d.IsZero() {
		return nil, fmt.Errorf("divide salary record by zero")
	}
	dup := s.clone()
	dup.gross = s.gross.Div(d.Decimal)
	return dup, nil
}
