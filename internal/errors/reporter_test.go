package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompilerErrorMessage(t *testing.T) {
	err := New(ErrorUnknownOpcode, "unknown opcode \"div\"", Position{Line: 3, Column: 3}).Build()
	assert.Contains(t, err.Error(), "E0100")
	assert.Contains(t, err.Error(), "line 3")

	cfg := Config("bad flag %q", "wat")
	assert.Contains(t, cfg.Error(), "E0200")
	assert.NotContains(t, cfg.Error(), "line")
}

func TestReporterShowsSourceContext(t *testing.T) {
	source := "0 var-x\n1 div 0 0\n2 neg 1\n"
	reporter := NewReporter("test.vm", source)

	err := New(ErrorUnknownOpcode, "unknown opcode \"div\"", Position{Line: 2, Column: 3}).
		WithLength(3).
		WithHelp("valid opcodes include add, sub, mul").
		Build()

	out := reporter.Format(err)
	assert.Contains(t, out, "E0100")
	assert.Contains(t, out, "test.vm:2:3")
	assert.Contains(t, out, "1 div 0 0")
	assert.Contains(t, out, "^^^")
	assert.Contains(t, out, "valid opcodes include")
}

func TestReporterToleratesMissingPosition(t *testing.T) {
	reporter := NewReporter("test.vm", "0 var-x\n")
	out := reporter.Format(Config("flags do not combine"))
	assert.Contains(t, out, "flags do not combine")
}

func TestBuilderNotes(t *testing.T) {
	err := New(ErrorWrongArity, "add takes 2 arguments", Position{Line: 1, Column: 1}).
		WithNote("found 1").
		Build()
	assert.Equal(t, []string{"found 1"}, err.Notes)
}
