package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	SetLevel(LevelWarn)
	Info("hidden", "row", 6)
	Warn("shown", "row", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "row=7")
}

func TestErrorIncludesErr(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	Error("write failed", errors.New("boom"), "row", 9, "dangling")

	out := buf.String()
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "row=9")
	assert.NotContains(t, out, "dangling")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
