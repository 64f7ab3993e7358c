package logging

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevel(t *testing.T) {
	logger := New(Options{Level: "WARN"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger = New(Options{Level: "nonsense"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := New(Options{Level: "debug", File: path, Service: "test"})
	logger.Info().Msg("hello")
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
