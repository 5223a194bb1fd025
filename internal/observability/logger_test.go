package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/a11yscope/a11yscope-cli/internal/config"
)

// syncBuffer adapts a strings.Builder into a zapcore.WriteSyncer.
type syncBuffer struct {
	strings.Builder
}

func (s *syncBuffer) Sync() error { return nil }

func TestInitialize_ConsoleFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "a11yscope-test",
	}, zapcore.Lock(zapcore.AddSync(buf)))

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("hello from the pipeline")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "hello from the pipeline")
	assert.Contains(t, out, "a11yscope-test.")
	assert.Contains(t, out, colorGreen, "console format colorizes the level")
}

func TestInitialize_LevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "warn", Format: "console"}, zapcore.AddSync(buf))

	logger := GetLogger()
	logger.Info("suppressed info line")
	logger.Warn("visible warn line")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "suppressed info line")
	assert.Contains(t, buf.String(), "visible warn line")
}

func TestInitialize_InvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "nonsense", Format: "json"}, zapcore.AddSync(buf))

	logger := GetLogger()
	logger.Debug("debug suppressed at info level")
	logger.Info("info visible")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "debug suppressed at info level")
	assert.Contains(t, buf.String(), "info visible")
}

func TestInitialize_FileOutput(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "a11yscope.log")
	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{
		Level:   "info",
		Format:  "console",
		LogFile: logFile,
		MaxSize: 1,
	}, zapcore.AddSync(buf))

	GetLogger().Info("structured file line")
	require.NoError(t, GetLogger().Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	// File output is always JSON regardless of console format.
	assert.Contains(t, string(data), `"structured file line"`)
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "console"}, zapcore.AddSync(first))
	Initialize(config.LoggerConfig{Level: "info", Format: "console"}, zapcore.AddSync(second))

	GetLogger().Info("goes to the first writer")
	require.NoError(t, GetLogger().Sync())

	assert.Contains(t, first.String(), "goes to the first writer")
	assert.Empty(t, second.String())
}

func TestGetLogger_FallbackBeforeInit(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must be usable without panicking.
	logger.Debug("fallback logger works")
}
