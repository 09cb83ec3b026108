package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/relayout/internal/ir"
)

// Infeasible is the delta reported when no legal rematerialization exists.
const Infeasible = math.MaxInt

// Error reports why a layout decision or rewrite failed.
//
// Infeasible and inversion-undefined errors are expected: they mean "leave
// the graph unchanged". Invariant violations mean the graph is not in the
// shape this package assumes and the pass must stop.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the instruction the decision stopped at, if any.
	Op string

	// Details contains additional context.
	Details map[string]string

	cause error
}

// ErrorCode categorizes layout errors.
type ErrorCode string

const (
	// ErrCodeInfeasible indicates no legal or affordable plan exists.
	ErrCodeInfeasible ErrorCode = "INFEASIBLE"

	// ErrCodeInversionUndefined indicates an instruction cannot map its
	// result layout back to its operands.
	ErrCodeInversionUndefined ErrorCode = "INVERSION_UNDEFINED"

	// ErrCodeInvariantViolation indicates an internal consistency failure.
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s (op=%s)", msg, e.Op)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// IsInfeasible reports whether err means no plan exists. Inversion-undefined
// errors count as infeasible.
func IsInfeasible(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == ErrCodeInfeasible || le.Code == ErrCodeInversionUndefined
	}
	return false
}

// IsInversionUndefined reports whether err is an inversion failure.
func IsInversionUndefined(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == ErrCodeInversionUndefined
	}
	return false
}

// IsInvariantViolation reports whether err is an invariant violation.
func IsInvariantViolation(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == ErrCodeInvariantViolation
	}
	return false
}

func opName(inst *ir.Instruction) string {
	if inst == nil {
		return ""
	}
	return inst.String()
}

func infeasible(op *ir.Instruction, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInfeasible, Message: fmt.Sprintf(format, args...), Op: opName(op)}
}

func undefinedInversion(op *ir.Instruction, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInversionUndefined, Message: fmt.Sprintf(format, args...), Op: opName(op)}
}

// invariant wraps cause as an invariant violation.
func invariant(cause error, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvariantViolation, Message: fmt.Sprintf(format, args...), cause: cause}
}
