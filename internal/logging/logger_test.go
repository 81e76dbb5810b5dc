package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, Options{Output: &buf})

	logger.Info("failed", "error", errors.New("boom"))
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), "err=boom")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelInfo, Options{Output: &buf, JSON: true}).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storyweaver.log")
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, Options{Output: &buf, File: path})

	logger.Info("to both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestRollingFile_Defaults(t *testing.T) {
	w := RollingFile(Options{File: "x.log"})
	assert.Equal(t, 10, w.MaxSize)
	assert.Equal(t, 3, w.MaxBackups)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
