package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	money "github.com/gtax/withholding-calculator/pkg/decimal"
)

// Attribute names a cap formula placeholder may reference.
const (
	AttrGrossMonthly = "gross_monthly"
	AttrGrossAnnual  = "gross_annual"
	AttrQuantity     = "quantity"
)

// CapContext supplies attribute values for cap formula placeholders. The
// evaluating salary record is the usual implementation.
type CapContext interface {
	Attribute(name string) (money.Money, bool)
}

// ResolveCap resolves a definition's cap to a concrete amount. Placeholders
// of the form {name} are substituted from ctx; the substituted string must
// then match a restricted grammar (digits, whitespace, the four arithmetic
// operators and the decimal point) before it is evaluated as exact-decimal
// arithmetic. The whitelist is what keeps the formula mechanism from ever
// executing anything beyond arithmetic. An absent cap resolves to the
// unbounded sentinel.
func ResolveCap(def DeductionDefinition, ctx CapContext) (money.Money, error) {
	if def.CapExpression == "" {
		return money.Unbounded(), nil
	}
	expr, err := substitute(def.CapExpression, ctx)
	if err != nil {
		return money.Zero(), err
	}
	if !safeExpression(expr) {
		return money.Zero(), fmt.Errorf("%w: %q", ErrUnsafeCapExpression, expr)
	}
	return evaluate(expr)
}

// ValidateCapExpression checks a configured cap formula against the
// restricted grammar using zero-valued attributes, so a broken catalog fails
// at load time instead of mid-computation.
func ValidateCapExpression(def DeductionDefinition) error {
	if def.CapExpression == "" {
		return nil
	}
	expr, err := substitute(def.CapExpression, zeroContext{})
	if err != nil {
		return err
	}
	if !safeExpression(expr) {
		return fmt.Errorf("%w: %q", ErrUnsafeCapExpression, def.CapExpression)
	}
	return nil
}

type zeroContext struct{}

func (zeroContext) Attribute(name string) (money.Money, bool) {
	switch name {
	case AttrGrossMonthly, AttrGrossAnnual, AttrQuantity:
		return money.Zero(), true
	}
	return money.Money{}, false
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

func substitute(expr string, ctx CapContext) (string, error) {
	var unknown string
	out := placeholderPattern.ReplaceAllStringFunc(expr, func(ph string) string {
		name := strings.Trim(ph, "{}")
		value, ok := ctx.Attribute(name)
		if !ok {
			unknown = name
			return ph
		}
		return value.Decimal.String()
	})
	if unknown != "" {
		return "", fmt.Errorf("%w: unknown attribute %q", ErrUnsafeCapExpression, unknown)
	}
	return out, nil
}

func safeExpression(expr string) bool {
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '*' || r == '/':
		case r == '.':
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}

// evaluate computes a whitelisted arithmetic expression with the usual
// precedence. Every literal goes through exact string-based construction.
func evaluate(expr string) (money.Money, error) {
	p := &exprParser{tokens: tokenize(expr)}
	result, err := p.parseSum()
	if err != nil {
		return money.Zero(), err
	}
	if p.pos != len(p.tokens) {
		return money.Zero(), fmt.Errorf("%w: trailing %q", ErrUnsafeCapExpression, p.tokens[p.pos])
	}
	return money.NewFromDecimal(result), nil
}

func tokenize(expr string) []string {
	var tokens []string
	var number strings.Builder
	flush := func() {
		if number.Len() > 0 {
			tokens = append(tokens, number.String())
			number.Reset()
		}
	}
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			number.WriteRune(r)
		case r == '+' || r == '-' || r == '*' || r == '/':
			flush()
			tokens = append(tokens, string(r))
		default: // whitespace, already whitelisted
			flush()
		}
	}
	flush()
	return tokens
}

type exprParser struct {
	tokens []string
	pos    int
}

func (p *exprParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *exprParser) parseSum() (decimal.Decimal, error) {
	value, err := p.parseProduct()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		switch p.peek() {
		case "+":
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return decimal.Zero, err
			}
			value = value.Add(rhs)
		case "-":
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return decimal.Zero, err
			}
			value = value.Sub(rhs)
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseProduct() (decimal.Decimal, error) {
	value, err := p.parseNumber()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		switch p.peek() {
		case "*":
			p.pos++
			rhs, err := p.parseNumber()
			if err != nil {
				return decimal.Zero, err
			}
			value = value.Mul(rhs)
		case "/":
			p.pos++
			rhs, err := p.parseNumber()
			if err != nil {
				return decimal.Zero, err
			}
			if rhs.IsZero() {
				return decimal.Zero, fmt.Errorf("cap expression: division by zero")
			}
			value = value.Div(rhs)
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseNumber() (decimal.Decimal, error) {
	tok := p.peek()
	if tok == "" {
		return decimal.Zero, fmt.Errorf("%w: expression ends mid-term", ErrUnsafeCapExpression)
	}
	value, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrUnsafeCapExpression, tok)
	}
	p.pos++
	return value, nil
}
