package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"panic":   zapcore.PanicLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(WithLevel("debug"), WithJSONFormat(true), WithConsoleWriter(&buf))
	require.Nil(t, err)

	log.Debug("task enqueued", zap.Int("queue", 2))
	require.Nil(t, log.Sync())

	var entry map[string]interface{}
	require.Nil(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "task enqueued", entry["msg"])
	require.Equal(t, float64(2), entry["queue"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(WithLevel("warn"), WithConsoleWriter(&buf))
	require.Nil(t, err)

	log.Info("hidden")
	log.Warn("all queues are full")
	require.Nil(t, log.Sync())

	out := buf.String()
	require.False(t, strings.Contains(out, "hidden"))
	require.True(t, strings.Contains(out, "all queues are full"))
}

func TestNew_FileOutput(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "pool.log")
	log, err := New(WithConsoleOutput(false), WithFileOutput(true), WithFilename(filename))
	require.Nil(t, err)

	log.Info("worker pool stopped")
	require.Nil(t, log.Sync())

	data, err := os.ReadFile(filename)
	require.Nil(t, err)
	require.True(t, strings.Contains(string(data), `"msg":"worker pool stopped"`))
}

func TestNew_NoOutput(t *testing.T) {
	_, err := New(WithConsoleOutput(false))
	require.NotNil(t, err)
}

func TestNew_RotationConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rotated.log")
	log, err := New(
		WithConsoleOutput(false),
		WithFileOutput(true),
		WithFilename(filename),
		WithRotationConfig(1, 7, 2, false),
	)
	require.Nil(t, err)

	log.Warn("all queues are full", zap.Int("task_id", 9))
	require.Nil(t, log.Sync())

	data, err := os.ReadFile(filename)
	require.Nil(t, err)
	require.True(t, strings.Contains(string(data), `"task_id":9`))
}

func TestGet_ReturnsInstalledLogger(t *testing.T) {
	installed := Get()
	require.NotNil(t, installed)
	require.Same(t, installed, Get())

	again, err := InitWithOptions(WithLevel("debug"))
	require.Nil(t, err)
	require.Same(t, installed, again)
}
