package log

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitedLogger(t *testing.T) {
	logger := NewRateLimitedLogger(10, level.Error(Logger))
	assert.NotNil(t, logger)

	_ = logger.Log("test")
}

func TestRateLimitedLoggerDropsAboveRate(t *testing.T) {
	var calls int
	counting := log.LoggerFunc(func(...interface{}) error {
		calls++
		return nil
	})

	logger := NewRateLimitedLogger(1, counting)
	for i := 0; i < 10; i++ {
		_ = logger.Log("msg", "flood")
	}

	assert.Equal(t, 1, calls, "burst of 1 must admit a single line per window")
}
