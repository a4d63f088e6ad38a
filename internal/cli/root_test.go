package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommand_Help(t *testing.T) {
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	_ = cmd.Execute()

	out := buf.String()
	assert.Contains(t, out, "orchctl")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "catalogue")
	assert.Contains(t, out, "audit")
	assert.Contains(t, out, "patterns")
}

func TestRunCommand_RequiresImageFlag(t *testing.T) {
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	assert.Error(t, err)
}

func TestCatalogueDump_Runs(t *testing.T) {
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"catalogue", "dump"})

	err := cmd.Execute()
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "detect_skin_tone")
}

func TestPatternsDump_EmptyBankPrintsNothing(t *testing.T) {
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"patterns", "dump", "--data-dir", t.TempDir()})

	err := cmd.Execute()
	assert.NoError(t, err)
	assert.Empty(t, buf.String())
}
