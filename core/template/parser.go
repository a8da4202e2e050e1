package template

import (
	"fmt"
	"strings"
	"sync"
)

// Parse converts a template source string into an immutable Template.
//
// The scan is left to right: '{' opens a field expression and '}' closes
// it; everything outside braces is literal text, kept verbatim. Inside the
// braces the content is split on '|'; the first token is the raw field name
// (spaces preserved), the rest are operation calls of the form "name" or
// "name:arg1:arg2". Colons inside arguments cannot be escaped, and there is
// no escape for a literal '{'; both are known constraints of the syntax.
// A '}' with no matching opener is treated as literal text.
//
// Operation names and argument counts are validated here against the
// registry, so a successfully parsed Template can never fail evaluation
// with an unknown operation. Failures are reported as *SyntaxError with
// the byte offset of the offending construct.
func Parse(source string) (*Template, error) {
	t := &Template{source: source}
	pos := 0
	for pos < len(source) {
		open := strings.IndexByte(source[pos:], '{')
		if open < 0 {
			t.segments = append(t.segments, Segment{Literal: &LiteralSegment{Text: source[pos:]}})
			break
		}
		open += pos
		if open > pos {
			t.segments = append(t.segments, Segment{Literal: &LiteralSegment{Text: source[pos:open]}})
		}
		end := strings.IndexByte(source[open:], '}')
		if end < 0 {
			return nil, &SyntaxError{Offset: open, Kind: SyntaxMalformed, Detail: "unterminated '{'"}
		}
		end += open
		body := source[open+1 : end]
		if nested := strings.IndexByte(body, '{'); nested >= 0 {
			return nil, &SyntaxError{Offset: open + 1 + nested, Kind: SyntaxMalformed, Detail: "'{' inside a field expression"}
		}
		field, err := parseFieldExpr(body, open+1)
		if err != nil {
			return nil, err
		}
		t.segments = append(t.segments, Segment{Field: field})
		pos = end + 1
	}
	return t, nil
}

// parseFieldExpr parses the text between braces. base is the byte offset of
// the expression body within the full source, used for error positions.
func parseFieldExpr(body string, base int) (*FieldSegment, error) {
	tokens := strings.Split(body, "|")
	if tokens[0] == "" {
		return nil, &SyntaxError{Offset: base, Kind: SyntaxMalformed, Detail: "empty field name"}
	}
	field := &FieldSegment{Name: tokens[0]}
	offset := base + len(tokens[0]) + 1
	for _, token := range tokens[1:] {
		if token == "" {
			return nil, &SyntaxError{Offset: offset, Kind: SyntaxMalformed, Detail: "empty operation"}
		}
		parts := strings.Split(token, ":")
		name := parts[0]
		args := parts[1:]
		op, ok := LookupOperation(name)
		if !ok {
			return nil, &SyntaxError{Offset: offset, Kind: SyntaxUnknownOperation, Op: name}
		}
		if len(args) < op.MinArgs || len(args) > op.MaxArgs {
			return nil, &SyntaxError{
				Offset: offset,
				Kind:   SyntaxArityMismatch,
				Op:     name,
				Detail: fmt.Sprintf("expected %s, got %d", arityRange(op), len(args)),
			}
		}
		field.Pipeline = append(field.Pipeline, OperationCall{Name: name, Args: args})
		offset += len(token) + 1
	}
	return field, nil
}

func arityRange(op *Operation) string {
	if op.MinArgs == op.MaxArgs {
		switch op.MinArgs {
		case 0:
			return "no arguments"
		case 1:
			return "1 argument"
		default:
			return fmt.Sprintf("%d arguments", op.MinArgs)
		}
	}
	return fmt.Sprintf("%d to %d arguments", op.MinArgs, op.MaxArgs)
}

// Parsing is deterministic, so caching parsed templates by source string is
// safe. The cache is written rarely (configuration changes) and read per
// evaluation, hence the RWMutex.
var (
	cacheMu sync.RWMutex
	cache   = map[string]*Template{}
)

// Cached returns the parsed form of source, parsing and memoizing it on
// first use. Parse failures are not cached.
func Cached(source string) (*Template, error) {
	cacheMu.RLock()
	t, ok := cache[source]
	cacheMu.RUnlock()
	if ok {
		return t, nil
	}
	t, err := Parse(source)
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cache[source] = t
	cacheMu.Unlock()
	return t, nil
}
