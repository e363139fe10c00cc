package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gtax/withholding-calculator/internal/domain"
	money "github.com/gtax/withholding-calculator/pkg/decimal"
)

// EmploymentMode selects which special deduction the annual pass attaches.
type EmploymentMode int

const (
	PayrollEmployee EmploymentMode = iota
	SelfEmployed
)

// AnnualTaxEngine owns the twelve monthly salary records for one tax year,
// folds the semestral bonus in at construction, and runs the cumulative
// progressive withholding pass.
type AnnualTaxEngine struct {
	mode     EmploymentMode
	bonus    bool
	rules    *domain.StatutoryRules
	months   [12]*SalaryRecord
	computed bool
	logger   Logger
}

// Option configures an engine at construction.
type Option func(*AnnualTaxEngine)

// SelfEmployedMode switches the mandatory special deduction to the
// self-employed variant.
func SelfEmployedMode() Option {
	return func(e *AnnualTaxEngine) { e.mode = SelfEmployed }
}

// WithoutBonus disables the semestral bonus folding.
func WithoutBonus() Option {
	return func(e *AnnualTaxEngine) { e.bonus = false }
}

// WithRules computes against a loaded statutory rules set instead of the
// built-in 2010 tables.
func WithRules(rules *domain.StatutoryRules) Option {
	return func(e *AnnualTaxEngine) {
		if rules != nil {
			e.rules = rules
		}
	}
}

// WithLogger attaches a logger for per-month computation tracing.
func WithLogger(logger Logger) Option {
	return func(e *AnnualTaxEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an engine with the same gross pay in all twelve months.
func NewEngine(grossMonthly money.Money, opts ...Option) *AnnualTaxEngine {
	e := newEngine(opts)
	for i := range e.months {
		e.months[i] = NewSalaryRecord(grossMonthly, e.rules)
	}
	e.foldBonus()
	return e
}

// NewEngineWithMonths builds an engine from twelve per-month gross amounts,
// for partial-year employment. Zero months count as absent for bonus
// proration.
func NewEngineWithMonths(grossMonthly []money.Money, opts ...Option) (*AnnualTaxEngine, error) {
	if len(grossMonthly) != 12 {
		return nil, fmt.Errorf("engine needs 12 monthly amounts, got %d", len(grossMonthly))
	}
	e := newEngine(opts)
	for i := range e.months {
		e.months[i] = NewSalaryRecord(grossMonthly[i], e.rules)
	}
	e.foldBonus()
	return e, nil
}

func newEngine(opts []Option) *AnnualTaxEngine {
	e := &AnnualTaxEngine{
		bonus:  true,
		rules:  domain.Default2010(),
		logger: NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// foldBonus adds half the peak salary to the closing month of each semester
// and prorates it by the number of worked months. Runs exactly once, before
// any deduction is attached.
func (e *AnnualTaxEngine) foldBonus() {
	if !e.bonus {
		return
	}

	// Presence is judged on the pre-bonus gross amounts, so the bonus itself
	// never makes a month count as worked.
	var present [12]bool
	peak := money.Zero()
	for i, rec := range e.months {
		present[i] = !rec.Gross().IsZero()
		peak = money.Max(peak, rec.Gross())
	}

	half := peak.Div(decimal.NewFromInt(2))
	e.months[5] = e.months[5].Add(Amount(half))
	e.months[11] = e.months[11].Add(Amount(half))

	for _, closing := range []int{5, 11} {
		worked := 0
		for i := closing - 5; i <= closing; i++ {
			if present[i] {
				worked++
			}
		}
		if worked != 6 {
			e.logger.Warnf("semester closing month %d: %d of 6 months worked, prorating bonus", closing+1, worked)
			ratio := decimal.NewFromInt(int64(worked)).Div(decimal.NewFromInt(6))
			e.months[closing] = e.months[closing].Scale(Amount(money.NewFromDecimal(ratio)))
		}
	}
}

// Month returns the record for a 1-based month.
func (e *AnnualTaxEngine) Month(month int) (*SalaryRecord, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d outside 1..12", domain.ErrInvalidMonth, month)
	}
	return e.months[month-1], nil
}

// Months returns the twelve monthly records, index 0 = January.
func (e *AnnualTaxEngine) Months() [12]*SalaryRecord {
	return e.months
}

// Rules returns the statutory tables the engine computes against. The
// deduction catalog inside is the stable, ordered list the presenting layer
// offers as choices.
func (e *AnnualTaxEngine) Rules() *domain.StatutoryRules {
	return e.rules
}

// ReplaceMonth swaps in a record for a 1-based month wholesale. The record's
// deductions travel with it.
func (e *AnnualTaxEngine) ReplaceMonth(month int, rec *SalaryRecord) error {
	if rec == nil {
		return domain.ErrNotSalaryRecord
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d outside 1..12", domain.ErrInvalidMonth, month)
	}
	e.months[month-1] = rec
	return nil
}

// monthTargets resolves a month selector: 0 means every month, otherwise the
// single 1-based month.
func (e *AnnualTaxEngine) monthTargets(month int) ([]*SalaryRecord, error) {
	if month == 0 {
		return e.months[:], nil
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d outside 0..12", domain.ErrInvalidMonth, month)
	}
	return e.months[month-1 : month], nil
}

// AttachDeduction attaches a catalog deduction to the given month, or to
// every month when month is 0.
func (e *AnnualTaxEngine) AttachDeduction(index, month int) error {
	targets, err := e.monthTargets(month)
	if err != nil {
		return err
	}
	for _, rec := range targets {
		if err := rec.AttachDeduction(index); err != nil {
			return err
		}
	}
	return nil
}

// AttachDeductionQuantity is AttachDeduction with a per-record quantity
// override.
func (e *AnnualTaxEngine) AttachDeductionQuantity(index int, quantity money.Money, month int) error {
	targets, err := e.monthTargets(month)
	if err != nil {
		return err
	}
	for _, rec := range targets {
		if err := rec.AttachDeductionQuantity(index, quantity); err != nil {
			return err
		}
	}
	return nil
}

// DetachDeduction removes a catalog deduction from the given month, or from
// every month when month is 0.
func (e *AnnualTaxEngine) DetachDeduction(index, month int) error {
	targets, err := e.monthTargets(month)
	if err != nil {
		return err
	}
	for _, rec := range targets {
		if err := rec.DetachDeduction(index); err != nil {
			return err
		}
	}
	return nil
}

// GrossAnnual sums the twelve months' gross pay.
func (e *AnnualTaxEngine) GrossAnnual() money.Money {
	total := money.Zero()
	for _, rec := range e.months {
		total = total.Add(rec.Gross())
	}
	return total
}

// WithheldAnnual sums the twelve months' withheld tax. It fails if any
// month's liability is still unset.
func (e *AnnualTaxEngine) WithheldAnnual() (money.Money, error) {
	total := money.Zero()
	for _, rec := range e.months {
		tax, err := rec.WithheldTax()
		if err != nil {
			return money.Zero(), err
		}
		total = total.Add(tax)
	}
	return total, nil
}

// ComputeWithholding runs the annual progressive pass once: it attaches the
// mandatory deductions, then walks months 1..12 accumulating net income and
// deriving each month's incremental tax against the year-to-date scale.
func (e *AnnualTaxEngine) ComputeWithholding() error {
	if e.computed {
		return domain.ErrAlreadyComputed
	}

	if err := e.AttachDeduction(domain.NonTaxableMinimum, 0); err != nil {
		return err
	}
	special := domain.SpecialPayroll
	if e.mode == SelfEmployed {
		special = domain.SpecialSelfEmployed
	}
	if err := e.AttachDeduction(special, 0); err != nil {
		return err
	}

	cumulativeNet := money.Zero()
	cumulativeRaw := money.Zero()
	for i, rec := range e.months {
		month := i + 1

		deductions := money.Zero()
		for _, ad := range rec.applied {
			amount, err := rec.EffectiveDeductionAmount(ad)
			if err != nil {
				return err
			}
			deductions = deductions.Add(amount)
		}
		scaledDeductions := deductions.ScaleToMonth(month)

		cumulativeNet = cumulativeNet.Add(rec.Gross().Sub(rec.ContributionTotal()))
		taxable := money.Max(cumulativeNet.Sub(scaledDeductions), money.Zero())

		row := e.selectBracket(taxable, month)
		raw := row.BaseAnnual.ScaleToMonth(month).
			Add(taxable.Sub(row.ThresholdAnnual.ScaleToMonth(month)).Mul(row.Rate))

		tax := money.Max(raw.Sub(cumulativeRaw), money.Zero())
		rec.setWithheldTax(tax)

		// The running total tracks the pre-floor raw amount so that a
		// negative correction in a later month offsets an earlier
		// over-withholding.
		cumulativeRaw = raw

		e.logger.Debugf("month %d: taxable=%s rate=%s raw=%s tax=%s",
			month, taxable, row.Rate, raw, tax)
	}

	e.computed = true
	e.logger.Infof("annual pass complete: net=%s cumulative tax=%s", cumulativeNet, cumulativeRaw)
	return nil
}

// selectBracket picks the highest bracket whose month-scaled threshold does
// not exceed the taxable amount; an exact tie selects the bracket at the
// threshold.
func (e *AnnualTaxEngine) selectBracket(taxable money.Money, month int) domain.BracketRow {
	idx := 0
	for i, row := range e.rules.Brackets {
		if row.ThresholdAnnual.ScaleToMonth(month).LessThanOrEqual(taxable) {
			idx = i
		} else {
			break
		}
	}
	return e.rules.Brackets[idx]
}
