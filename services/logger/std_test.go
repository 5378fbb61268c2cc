package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(log.New(&buf, "", 0), false)

	logger.Debug("hidden")
	logger.Warn("cache unavailable", errors.New("dial tcp: refused"))

	assert.Equal(t, "WARN: cache unavailable\ndial tcp: refused\n", buf.String())

	buf.Reset()
	NewStdLogger(log.New(&buf, "", 0), true).Debug("shown")
	assert.Equal(t, "DEBUG: shown\n", buf.String())
}
