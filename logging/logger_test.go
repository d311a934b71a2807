package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// TestAddWriter ensures registered writers receive log output and duplicate
// registration is a no-op.
func TestAddWriter(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)
	var buffer bytes.Buffer
	logger.AddWriter(&buffer, STRUCTURED)
	logger.AddWriter(&buffer, STRUCTURED)
	assert.Len(t, logger.writers, 1)

	logger.Info("compilation ", "finished")
	output := buffer.String()
	assert.Contains(t, output, "compilation finished")
	assert.Contains(t, output, `"level":"info"`)
}

// TestSubLoggerCarriesContext ensures sub-loggers stamp their key-value
// context on every event.
func TestSubLoggerCarriesContext(t *testing.T) {
	logger := NewLogger(zerolog.DebugLevel, false)
	var buffer bytes.Buffer
	logger.AddWriter(&buffer, STRUCTURED)

	sub := logger.NewSubLogger("module", "compiler")
	sub.Debug("parsing")
	assert.Contains(t, buffer.String(), `"module":"compiler"`)
}

// TestLevelFiltering ensures events below the logger level are dropped.
func TestLevelFiltering(t *testing.T) {
	logger := NewLogger(zerolog.WarnLevel, false)
	var buffer bytes.Buffer
	logger.AddWriter(&buffer, STRUCTURED)

	logger.Info("ignored")
	logger.Warn("kept")

	assert.False(t, strings.Contains(buffer.String(), "ignored"))
	assert.Contains(t, buffer.String(), "kept")
}

// TestStructuredLogInfo ensures attached structured data is serialized.
func TestStructuredLogInfo(t *testing.T) {
	logger := NewLogger(zerolog.InfoLevel, false)
	var buffer bytes.Buffer
	logger.AddWriter(&buffer, STRUCTURED)

	logger.Info("done", StructuredLogInfo{"contracts": 3})
	assert.Contains(t, buffer.String(), `"contracts":3`)
}
