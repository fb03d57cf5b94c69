package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

func TestNew_Defaults(t *testing.T) {
	logger, err := New(domain.LoggingConfig{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stdout, logger.Out)
}

func TestNew_TextToStderr(t *testing.T) {
	logger, err := New(domain.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "capdcis.log")

	logger, err := New(domain.LoggingConfig{Output: "file", Filename: path})
	require.NoError(t, err)
	logger.WithField("case_id", "c1").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"case_id":"c1"`)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNew_Errors(t *testing.T) {
	tests := []domain.LoggingConfig{
		{Level: "loud"},
		{Format: "xml"},
		{Output: "syslog"},
		{Output: "file"},
	}
	for _, cfg := range tests {
		_, err := New(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}
