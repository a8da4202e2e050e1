package template

import "fmt"

// SyntaxKind classifies the ways a template source string can fail to parse.
type SyntaxKind string

// Parse-time failure kinds.
const (
	SyntaxMalformed        SyntaxKind = "malformed"
	SyntaxUnknownOperation SyntaxKind = "unknown_operation"
	SyntaxArityMismatch    SyntaxKind = "arity_mismatch"
)

// SyntaxError is returned by Parse when a template source string is
// rejected. Offset is the byte position of the offending construct within
// the source, suitable for caret-style error display in a configuration
// editor. Op is set for operation-related kinds.
type SyntaxError struct {
	Offset int
	Kind   SyntaxKind
	Op     string
	Detail string
}

func (e *SyntaxError) Error() string {
	switch e.Kind {
	case SyntaxUnknownOperation:
		return fmt.Sprintf("template: unknown operation %q at offset %d", e.Op, e.Offset)
	case SyntaxArityMismatch:
		return fmt.Sprintf("template: operation %q at offset %d: %s", e.Op, e.Offset, e.Detail)
	default:
		return fmt.Sprintf("template: syntax error at offset %d: %s", e.Offset, e.Detail)
	}
}

// EvalKind classifies the ways an operation pipeline can fail during
// evaluation.
type EvalKind string

// Evaluation-time failure kinds.
const (
	EvalTypeMismatch      EvalKind = "type_mismatch"
	EvalInvalidArgs       EvalKind = "invalid_args"
	EvalInvalidFormatSpec EvalKind = "invalid_format_spec"
)

// EvalError is returned by Evaluate when an operation in a field's pipeline
// fails. It carries the field name and operation name so callers can show
// actionable feedback. A missing field value is not an error; it evaluates
// to the empty string.
type EvalError struct {
	Field string
	Op    string
	Kind  EvalKind
	Err   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("template: field %q, operation %q: %s: %v", e.Field, e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// evalFailure builds the partially-filled EvalError an operation reports;
// the evaluator fills in Field and Op before returning it.
func evalFailure(kind EvalKind, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
