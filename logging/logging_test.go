package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	log, err := New(Config{Level: "debug", Development: true, Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestPrintf(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Printf{Sugar: zap.New(core).Sugar()}.Printf("timer %s count: %d", "rpc.calc.add", 3)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "timer rpc.calc.add count: 3", logs.All()[0].Message)
}
