package template

import (
	"errors"
	"strings"
)

// Evaluate renders a parsed Template against a Row and returns the final
// output string. The walk is a plain linear fold: literal segments are
// appended verbatim, field segments are resolved from the row and threaded
// through their operation pipeline left to right.
//
// A field missing from the row (or present with a nil value) contributes
// the empty string; sparse spreadsheet data must not abort best-effort
// renaming. Any operation failure aborts the evaluation with an *EvalError
// naming the field and operation; the engine never partially applies a
// pipeline or swallows a typed failure. Evaluation holds no state, so a
// shared Template may be evaluated concurrently with distinct rows.
func Evaluate(t *Template, row Row) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		switch {
		case seg.Literal != nil:
			b.WriteString(seg.Literal.Text)
		case seg.Field != nil:
			out, err := evaluateField(seg.Field, row)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
		}
	}
	return b.String(), nil
}

// Render is the parse-and-evaluate convenience used by one-shot callers
// such as the CLI; repeated evaluation of the same template goes through
// the parse cache.
func Render(source string, row Row) (string, error) {
	t, err := Cached(source)
	if err != nil {
		return "", err
	}
	return Evaluate(t, row)
}

func evaluateField(field *FieldSegment, row Row) (string, error) {
	value, ok := row[field.Name]
	if !ok || value == nil {
		value = ""
	}
	for _, call := range field.Pipeline {
		op, ok := LookupOperation(call.Name)
		if !ok {
			// Unreachable for parser-built templates; kept as a guard.
			return "", &EvalError{Field: field.Name, Op: call.Name, Kind: EvalInvalidArgs,
				Err: errUnknownOperation}
		}
		next, err := op.apply(value, call.Args)
		if err != nil {
			if ee, isEval := err.(*EvalError); isEval {
				ee.Field = field.Name
				ee.Op = call.Name
				return "", ee
			}
			return "", &EvalError{Field: field.Name, Op: call.Name, Kind: EvalInvalidArgs, Err: err}
		}
		value = next
	}
	return Stringify(value), nil
}

var errUnknownOperation = errors.New("operation not present in registry")
