package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCaseFile(t *testing.T) {
	doc := `{"case":{"case_id":"C-9","economic_damages":50000,"venue":"Los Angeles"},"narrative":"MRI showed a herniation","strategy":{"defense_authority":90000}}`

	t.Run("stdin", func(t *testing.T) {
		input, err := readCaseFile(strings.NewReader(doc), nil)
		require.NoError(t, err)
		assert.Equal(t, "C-9", input.Case.CaseID)
		require.NotNil(t, input.Case.EconomicDamages)
		assert.InDelta(t, 50000, *input.Case.EconomicDamages, 1e-9)
		assert.Equal(t, "MRI showed a herniation", input.Narrative)
		require.NotNil(t, input.Strategy)
		require.NotNil(t, input.Strategy.DefenseAuthority)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "case.json")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
		input, err := readCaseFile(strings.NewReader(""), []string{path})
		require.NoError(t, err)
		assert.Equal(t, "Los Angeles", input.Case.Venue)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := readCaseFile(strings.NewReader(`{"cse":{}}`), nil)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readCaseFile(strings.NewReader(""), []string{filepath.Join(t.TempDir(), "nope.json")})
		assert.Error(t, err)
	})
}

func TestRootCmd_RejectsUnknownFormat(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"-o", "xml"})
	cmd.SetIn(strings.NewReader("{}"))
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}
