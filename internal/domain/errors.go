package domain

import "errors"

// Sentinel errors for the engine's failure taxonomy. All are local,
// synchronous caller errors; none are retried or recovered internally.
var (
	// ErrInvalidDeductionIndex reports a catalog index outside [0, len).
	ErrInvalidDeductionIndex = errors.New("invalid deduction index")

	// ErrUnsafeCapExpression reports a cap formula that, after placeholder
	// substitution, contains characters or structure outside the restricted
	// arithmetic grammar. With a fixed catalog this is a configuration
	// integrity failure and should surface at load time.
	ErrUnsafeCapExpression = errors.New("unsafe cap expression")

	// ErrTaxNotComputed reports a withheld-tax read before the annual
	// computation pass ran.
	ErrTaxNotComputed = errors.New("withholding tax not computed")

	// ErrDeductionNotApplied reports a detach of a deduction the record does
	// not currently hold.
	ErrDeductionNotApplied = errors.New("deduction not applied to record")

	// ErrNotSalaryRecord reports an attempt to place a nil record into a
	// month slot.
	ErrNotSalaryRecord = errors.New("month slot requires a salary record")

	// ErrAlreadyComputed reports a second invocation of the single-shot
	// annual computation pass.
	ErrAlreadyComputed = errors.New("withholding already computed")

	// ErrInvalidMonth reports a month argument outside the valid range.
	ErrInvalidMonth = errors.New("invalid month")
)
