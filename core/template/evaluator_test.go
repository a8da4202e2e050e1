package template

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, source string) *Template {
	t.Helper()
	tpl, err := Parse(source)
	require.NoError(t, err)
	return tpl
}

func TestEvaluate_Basics(t *testing.T) {
	t.Run("literal-only template is returned verbatim", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "plain text, no fields.pdf"), Row{})
		require.NoError(t, err)
		assert.Equal(t, "plain text, no fields.pdf", out)
	})

	t.Run("string field with upper", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{name|str.upper}"), Row{"name": "alice"})
		require.NoError(t, err)
		assert.Equal(t, "ALICE", out)
	})

	t.Run("missing field renders empty, not an error", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{absent|str.upper}"), Row{"present": "x"})
		require.NoError(t, err)
		assert.Equal(t, "", out)
	})

	t.Run("nil value renders empty", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{v}"), Row{"v": nil})
		require.NoError(t, err)
		assert.Equal(t, "", out)
	})

	t.Run("field without pipeline uses default rendering", func(t *testing.T) {
		row := Row{
			"n": 42.0,
			"d": time.Date(2023, 7, 15, 10, 30, 0, 0, time.UTC),
		}
		out, err := Evaluate(mustParse(t, "{n} on {d}"), row)
		require.NoError(t, err)
		assert.Equal(t, "42 on 2023-07-15", out)
	})
}

func TestEvaluate_DateOperations(t *testing.T) {
	d := time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC)

	t.Run("year_month", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{d|date.year_month}"), Row{"d": d})
		require.NoError(t, err)
		assert.Equal(t, "2023-07", out)
	})

	t.Run("year and zero-padded month", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{d|date.year}-{d|date.month}"), Row{"d": d})
		require.NoError(t, err)
		assert.Equal(t, "2023-07", out)
	})

	t.Run("string values are coerced through common layouts", func(t *testing.T) {
		for _, raw := range []string{"15/07/2023", "2023-07-15", "15_07_2023", "15-07-2023"} {
			out, err := Evaluate(mustParse(t, "{d|date.year_month}"), Row{"d": raw})
			require.NoError(t, err, "input %q", raw)
			assert.Equal(t, "2023-07", out)
		}
	})

	t.Run("custom format", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{d|date.format:%d.%m.%Y}"), Row{"d": d})
		require.NoError(t, err)
		assert.Equal(t, "15.07.2023", out)
	})

	t.Run("non-date string fails with type mismatch naming field and op", func(t *testing.T) {
		_, err := Evaluate(mustParse(t, "{d|date.year}"), Row{"d": "not a date"})
		var eerr *EvalError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, EvalTypeMismatch, eerr.Kind)
		assert.Equal(t, "d", eerr.Field)
		assert.Equal(t, "date.year", eerr.Op)
	})

	t.Run("numeric value fails date coercion", func(t *testing.T) {
		_, err := Evaluate(mustParse(t, "{d|date.month}"), Row{"d": 3.14})
		var eerr *EvalError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, EvalTypeMismatch, eerr.Kind)
	})

	t.Run("malformed format spec", func(t *testing.T) {
		_, err := Evaluate(mustParse(t, "{d|date.format:%Q}"), Row{"d": d})
		var eerr *EvalError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, EvalInvalidFormatSpec, eerr.Kind)
		assert.Equal(t, "date.format", eerr.Op)
	})
}

func TestEvaluate_StringOperations(t *testing.T) {
	t.Run("chained operations apply left to right", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{f|str.lower|str.title}"), Row{"f": "JOHN SMITH"})
		require.NoError(t, err)
		assert.Equal(t, "John Smith", out)
	})

	t.Run("slice within bounds", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{x|str.slice:0:4}"), Row{"x": "abcdefgh"})
		require.NoError(t, err)
		assert.Equal(t, "abcd", out)
	})

	t.Run("slice clamps past the end without error", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{x|str.slice:0:4}"), Row{"x": "ab"})
		require.NoError(t, err)
		assert.Equal(t, "ab", out)
	})

	t.Run("slice with non-integer argument", func(t *testing.T) {
		_, err := Evaluate(mustParse(t, "{x|str.slice:0:end}"), Row{"x": "abc"})
		var eerr *EvalError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, EvalInvalidArgs, eerr.Kind)
		assert.Equal(t, "x", eerr.Field)
		assert.Equal(t, "str.slice", eerr.Op)
	})

	t.Run("replace is a no-op when old is absent", func(t *testing.T) {
		out, err := Evaluate(mustParse(t, "{x|str.replace:zzz:yyy}"), Row{"x": "abc"})
		require.NoError(t, err)
		assert.Equal(t, "abc", out)
	})

	t.Run("string op after date op works on the rendered string", func(t *testing.T) {
		d := time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC)
		out, err := Evaluate(mustParse(t, "{d|date.year_month|str.replace:-:_}"), Row{"d": d})
		require.NoError(t, err)
		assert.Equal(t, "2023_07", out)
	})
}

func TestRender(t *testing.T) {
	out, err := Render("{a} {b|str.upper}", Row{"a": "x", "b": "y"})
	require.NoError(t, err)
	assert.Equal(t, "x Y", out)

	_, err = Render("{a|bogus.op}", Row{})
	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
}

func TestEvaluate_ConcurrentSharedTemplate(t *testing.T) {
	tpl := mustParse(t, "{name|str.upper}/{d|date.year_month}")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := Row{
				"name": "alice",
				"d":    time.Date(2020+i%5, 3, 1, 0, 0, 0, 0, time.UTC),
			}
			out, err := Evaluate(tpl, row)
			assert.NoError(t, err)
			assert.Contains(t, out, "ALICE/")
		}(i)
	}
	wg.Wait()
}
