package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	renderSets = nil
	renderMatch = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid template", func(t *testing.T) {
		out, err := runCommand(t, "validate", "{FOURNISSEUR|str.upper} - {FACTURE}.pdf")
		require.NoError(t, err)
		assert.Contains(t, out, "template OK")
		assert.Contains(t, out, "FOURNISSEUR")
		assert.Contains(t, out, "FACTURE")
	})

	t.Run("syntax error gets a caret", func(t *testing.T) {
		out, err := runCommand(t, "validate", "{name|bogus.op}")
		require.Error(t, err)
		assert.Contains(t, out, "^")
	})
}

func TestRenderCommand(t *testing.T) {
	t.Run("set values", func(t *testing.T) {
		out, err := runCommand(t, "render", "{name|str.upper} - {invoice}.pdf",
			"--set", "name=Acme Corp", "--set", "invoice=N° 42")
		require.NoError(t, err)
		assert.Equal(t, "ACME CORP - N° 42.pdf\n", out)
	})

	t.Run("missing fields render empty", func(t *testing.T) {
		out, err := runCommand(t, "render", "[{nothing}]")
		require.NoError(t, err)
		assert.Equal(t, "[]\n", out)
	})

	t.Run("malformed set pair", func(t *testing.T) {
		_, err := runCommand(t, "render", "{x}", "--set", "oops")
		require.Error(t, err)
	})
}
