package logx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLineFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")

	log.Info("no status change", String("hw", "hw1"))

	line := strings.TrimSpace(buf.String())
	re := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3} - INFO - no status change hw=hw1$`)
	assert.Regexp(t, re, line)
}

func TestCriticalDoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")

	log.Critical("missing credentials", Err(errors.New("TELEGRAM_TOKEN is empty")))

	out := buf.String()
	assert.Contains(t, out, " - CRITICAL - missing credentials")
	assert.Contains(t, out, "TELEGRAM_TOKEN is empty")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), " - WARNING - shown")
	assert.False(t, log.Enabled(LevelInfo))
	assert.True(t, log.Enabled(LevelError))
}

func TestWithAddsFixedFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "poller"))

	log.Debug("tick", Int("n", 3))

	assert.Contains(t, buf.String(), "comp=poller")
	assert.Contains(t, buf.String(), "n=3")
}

func TestZeroAndNopLoggers(t *testing.T) {
	var zero Logger
	assert.True(t, zero.IsZero())
	zero.Info("dropped")

	nop := Nop()
	assert.False(t, nop.IsZero())
	nop.Error("dropped")
}

func TestServiceApplyWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hwbot.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("message sent", String("text", "hello"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"message sent"`)
	assert.Contains(t, string(b), `"level":"info"`)

	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	log.Info("suppressed after apply")
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "suppressed after apply")
	assert.Equal(t, "error", svc.Config().Level)
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warning", "critical"} {
		assert.True(t, ValidLevel(lvl), lvl)
	}
	assert.False(t, ValidLevel("verbose"))
}
