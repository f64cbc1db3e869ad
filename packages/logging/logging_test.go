package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_QuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{NoColor: true})

	logger.Debug("sending request", "url", "http://example.com")
	logger.Info("started")
	assert.Empty(t, buf.String())

	logger.Warn("invalid proxy", "proxy", "::")
	assert.Contains(t, buf.String(), "invalid proxy")
	assert.Contains(t, buf.String(), "proxy=::")
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Verbose: true, NoColor: true})

	logger.Debug("sending request", "method", "POST")
	assert.Contains(t, buf.String(), "sending request")
	assert.Contains(t, buf.String(), "method=POST")
	assert.NotContains(t, buf.String(), "\033[", "no ANSI codes when colour is off")
}
