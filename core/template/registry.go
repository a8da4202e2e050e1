package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Operation is a single named, parameterized transformation over one scalar
// value. Operations are pure functions of (value, args); they never see the
// full Row, only the value threaded through the pipeline so far.
type Operation struct {
	Name    string
	MinArgs int
	MaxArgs int
	apply   func(value any, args []string) (any, error)
}

// builtins is the fixed, process-wide operation registry. It is populated
// once at package init and never mutated afterwards, so lookups need no
// synchronization.
var builtins = map[string]*Operation{}

func register(ops ...*Operation) {
	for _, op := range ops {
		builtins[op.Name] = op
	}
}

// LookupOperation resolves an operation name against the registry.
func LookupOperation(name string) (*Operation, bool) {
	op, ok := builtins[name]
	return op, ok
}

// OperationNames returns the names of all registered operations, unsorted.
func OperationNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}

func init() {
	register(
		&Operation{Name: "date.year", apply: dateOp(func(t time.Time, _ []string) (string, error) {
			return t.Format("2006"), nil
		})},
		&Operation{Name: "date.month", apply: dateOp(func(t time.Time, _ []string) (string, error) {
			return t.Format("01"), nil
		})},
		&Operation{Name: "date.year_month", apply: dateOp(func(t time.Time, _ []string) (string, error) {
			return t.Format("2006-01"), nil
		})},
		&Operation{Name: "date.format", MinArgs: 1, MaxArgs: 1, apply: dateOp(func(t time.Time, args []string) (string, error) {
			layout, err := strftimeLayout(args[0])
			if err != nil {
				return "", evalFailure(EvalInvalidFormatSpec, "%v", err)
			}
			return t.Format(layout), nil
		})},
		&Operation{Name: "str.upper", apply: strOp(func(s string, _ []string) (string, error) {
			return strings.ToUpper(s), nil
		})},
		&Operation{Name: "str.lower", apply: strOp(func(s string, _ []string) (string, error) {
			return strings.ToLower(s), nil
		})},
		&Operation{Name: "str.title", apply: strOp(func(s string, _ []string) (string, error) {
			return cases.Title(language.Und).String(s), nil
		})},
		&Operation{Name: "str.replace", MinArgs: 2, MaxArgs: 2, apply: strOp(func(s string, args []string) (string, error) {
			return strings.ReplaceAll(s, args[0], args[1]), nil
		})},
		&Operation{Name: "str.slice", MinArgs: 2, MaxArgs: 2, apply: strOp(applySlice)},
		&Operation{Name: "str.sanitize", apply: strOp(func(s string, _ []string) (string, error) {
			return SanitizeSegment(s), nil
		})},
		&Operation{Name: "str.first_word", apply: strOp(func(s string, _ []string) (string, error) {
			fields := strings.Fields(s)
			if len(fields) == 0 {
				return "", nil
			}
			return fields[0], nil
		})},
		&Operation{Name: "str.split_no_last", apply: strOp(applySplitNoLast)},
	)
}

// strOp adapts a string transformation to the registry signature, coercing
// the incoming value to its string representation first.
func strOp(fn func(s string, args []string) (string, error)) func(any, []string) (any, error) {
	return func(value any, args []string) (any, error) {
		return fn(Stringify(value), args)
	}
}

// dateOp adapts a date transformation to the registry signature. The
// incoming value must be a time.Time or a string in one of the supported
// date layouts; anything else is a type mismatch.
func dateOp(fn func(t time.Time, args []string) (string, error)) func(any, []string) (any, error) {
	return func(value any, args []string) (any, error) {
		t, err := coerceDate(value)
		if err != nil {
			return nil, err
		}
		return fn(t, args)
	}
}

// dateLayouts are the spreadsheet date formats accepted when coercing a
// string field into a date, day-first formats ahead of ISO per the source
// data this tool is pointed at.
var dateLayouts = []string{
	"02_01_2006",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
}

func coerceDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, evalFailure(EvalTypeMismatch, "cannot parse %q as a date", v)
	default:
		return time.Time{}, evalFailure(EvalTypeMismatch, "date operations require a date or date string, got %T", value)
	}
}

// strftimeVerbs maps strftime conversion characters to Go reference-time
// layout fragments.
var strftimeVerbs = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'B': "January",
	'b': "Jan",
	'A': "Monday",
	'a': "Mon",
	'p': "PM",
	'%': "%",
}

// strftimeLayout translates a strftime-style format specifier into a Go
// time layout. Unsupported verbs and a trailing bare '%' are rejected.
func strftimeLayout(spec string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(spec); i++ {
		if spec[i] != '%' {
			b.WriteByte(spec[i])
			continue
		}
		i++
		if i == len(spec) {
			return "", errDanglingPercent
		}
		frag, ok := strftimeVerbs[spec[i]]
		if !ok {
			return "", &formatVerbError{verb: spec[i]}
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

var errDanglingPercent = &formatVerbError{}

type formatVerbError struct {
	verb byte
}

func (e *formatVerbError) Error() string {
	if e.verb == 0 {
		return "format specifier ends with a bare '%'"
	}
	return "unsupported format verb %" + string(e.verb)
}

func applySlice(s string, args []string) (string, error) {
	start, err := strconv.Atoi(args[0])
	if err != nil {
		return "", evalFailure(EvalInvalidArgs, "slice start %q is not an integer", args[0])
	}
	end, err := strconv.Atoi(args[1])
	if err != nil {
		return "", evalFailure(EvalInvalidArgs, "slice end %q is not an integer", args[1])
	}
	if start < 0 || end < 0 {
		return "", evalFailure(EvalInvalidArgs, "negative slice indices are not supported")
	}
	runes := []rune(s)
	if start > len(runes) {
		start = len(runes)
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return "", nil
	}
	return string(runes[start:end]), nil
}

func applySplitNoLast(s string, _ []string) (string, error) {
	const marker = "N°"
	if !strings.Contains(s, marker) {
		return strings.TrimSpace(s), nil
	}
	parts := strings.Split(s, marker)
	return marker + strings.TrimSpace(parts[len(parts)-1]), nil
}

// segmentReplacements is the substitution table applied by SanitizeSegment.
// Question marks and NUL bytes are dropped outright.
var segmentReplacements = []struct {
	old string
	new string
}{
	{"/", "_"},
	{"\\", "_"},
	{":", "-"},
	{"*", "+"},
	{"?", ""},
	{"\"", "'"},
	{"<", "("},
	{">", ")"},
	{"|", "-"},
	{"\x00", ""},
	{"\n", " "},
	{"\r", " "},
	{"\t", " "},
}

// SanitizeSegment rewrites a string so it is safe to use as a single path
// segment: filesystem-reserved characters are substituted, leading and
// trailing dots and spaces trimmed, and runs of whitespace collapsed.
// Exposed both as the str.sanitize operation and for callers that sanitize
// evaluated output before building paths.
func SanitizeSegment(s string) string {
	for _, r := range segmentReplacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	s = strings.Trim(s, ". ")
	return strings.Join(strings.Fields(s), " ")
}

// Stringify renders a pipeline value to its final string representation.
// Dates use an ISO day format unless a date.* operation already rendered
// them; floats drop insignificant trailing zeros.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
