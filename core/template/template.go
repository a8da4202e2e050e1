// Package template implements the output-path template engine. A template
// is plain text interleaved with `{field|op|op:arg}` placeholders: the field
// names a column in a Row, and the pipe-separated operations are applied to
// its value left to right. Parsing and evaluation are pure; a parsed
// Template is immutable and safe to share across goroutines.
package template

// Row holds the named field values available for a single evaluation,
// typically one matched spreadsheet record. Values may be strings,
// time.Time, numbers, or nil. The engine only reads it.
type Row map[string]any

// OperationCall is a single parsed operation invocation within a pipeline.
// The name is resolved against the operation registry at parse time, so an
// OperationCall inside a Template always refers to a known operation.
type OperationCall struct {
	Name string   // Registry name, e.g. "str.upper" or "date.format".
	Args []string // Positional string arguments, already arity-checked.
}

// LiteralSegment is verbatim text between placeholders, whitespace and
// punctuation included.
type LiteralSegment struct {
	Text string
}

// FieldSegment references one named field plus the ordered pipeline of
// operations to apply to its value. Field names are kept raw; spreadsheet
// column headers routinely contain spaces.
type FieldSegment struct {
	Name     string
	Pipeline []OperationCall
}

// Segment is a union type that represents either literal text or a field
// expression. Exactly one of the members is non-nil.
type Segment struct {
	Literal *LiteralSegment
	Field   *FieldSegment
}

// Template is the immutable parsed form of a template source string. It can
// only be obtained from Parse or Cached, which guarantees every operation
// in it exists in the registry with a valid argument count.
type Template struct {
	source   string
	segments []Segment
}

// Source returns the original template string the Template was parsed from.
func (t *Template) Source() string {
	return t.source
}

// Segments returns the parsed segments in evaluation order. The returned
// slice is shared; callers must not modify it.
func (t *Template) Segments() []Segment {
	return t.segments
}

// Fields returns the distinct field names referenced by the template, in
// first-appearance order. Useful for callers that want to know which
// spreadsheet columns a template depends on.
func (t *Template) Fields() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, seg := range t.segments {
		if seg.Field == nil {
			continue
		}
		if _, ok := seen[seg.Field.Name]; ok {
			continue
		}
		seen[seg.Field.Name] = struct{}{}
		names = append(names, seg.Field.Name)
	}
	return names
}
