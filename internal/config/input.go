package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/gtax/withholding-calculator/internal/domain"
)

// RulesParser handles parsing of statutory rules files.
type RulesParser struct{}

// NewRulesParser creates a new rules parser.
func NewRulesParser() *RulesParser {
	return &RulesParser{}
}

// LoadFromFile loads a statutory rules set from a YAML file.
func (rp *RulesParser) LoadFromFile(filename string) (*domain.StatutoryRules, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var rules domain.StatutoryRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := rp.ValidateRules(&rules); err != nil {
		return nil, fmt.Errorf("rules validation failed: %w", err)
	}

	return &rules, nil
}

// ValidateRules validates a loaded rules set. Catalog integrity failures,
// including unsafe cap expressions, are fatal here rather than at
// computation time.
func (rp *RulesParser) ValidateRules(rules *domain.StatutoryRules) error {
	if err := rp.validateBrackets(rules.Brackets); err != nil {
		return fmt.Errorf("bracket table: %w", err)
	}
	if err := rp.validateContributions(rules.Contributions); err != nil {
		return fmt.Errorf("contribution table: %w", err)
	}
	if err := rp.validateDeductions(rules.Deductions); err != nil {
		return fmt.Errorf("deduction catalog: %w", err)
	}
	return nil
}

func (rp *RulesParser) validateBrackets(brackets []domain.BracketRow) error {
	if len(brackets) == 0 {
		return fmt.Errorf("no brackets provided")
	}
	if !brackets[0].ThresholdAnnual.IsZero() {
		return fmt.Errorf("first bracket threshold must be zero")
	}
	one := decimal.NewFromInt(1)
	for i, row := range brackets {
		if !row.Rate.IsPositive() || row.Rate.GreaterThan(one) {
			return fmt.Errorf("bracket %d: rate must be in (0, 1]", i)
		}
		if row.ThresholdAnnual.IsNegative() || row.BaseAnnual.IsNegative() {
			return fmt.Errorf("bracket %d: threshold and base cannot be negative", i)
		}
		if i > 0 && !row.ThresholdAnnual.GreaterThan(brackets[i-1].ThresholdAnnual) {
			return fmt.Errorf("bracket %d: thresholds must be strictly increasing", i)
		}
	}
	return nil
}

func (rp *RulesParser) validateContributions(contributions []domain.ContributionRate) error {
	one := decimal.NewFromInt(1)
	for i, c := range contributions {
		if c.Label == "" {
			return fmt.Errorf("contribution %d: label is required", i)
		}
		if !c.Rate.IsPositive() || c.Rate.GreaterThanOrEqual(one) {
			return fmt.Errorf("contribution %d (%s): rate must be in (0, 1)", i, c.Label)
		}
	}
	return nil
}

func (rp *RulesParser) validateDeductions(catalog domain.Catalog) error {
	// The annual pass attaches the non-taxable minimum and the special
	// deductions by position, so those slots must exist and carry amounts.
	for _, index := range []int{domain.SpecialPayroll, domain.SpecialSelfEmployed, domain.NonTaxableMinimum} {
		def, err := catalog.Lookup(index)
		if err != nil {
			return fmt.Errorf("mandatory deduction missing: %w", err)
		}
		if def.Nominal == nil {
			return fmt.Errorf("deduction %d (%s): mandatory deductions need a nominal amount", index, def.Label)
		}
	}
	for i, def := range catalog {
		if def.Label == "" {
			return fmt.Errorf("deduction %d: label is required", i)
		}
		if def.Nominal == nil && def.CapExpression == "" {
			return fmt.Errorf("deduction %d (%s): need a nominal amount or a cap", i, def.Label)
		}
		if def.Nominal != nil && def.Nominal.IsNegative() {
			return fmt.Errorf("deduction %d (%s): nominal amount cannot be negative", i, def.Label)
		}
		if err := domain.ValidateCapExpression(def); err != nil {
			return fmt.Errorf("deduction %d (%s): %w", i, def.Label, err)
		}
	}
	return nil
}
