package pebble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPebbleLoggerWritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := pebbleLogger{zap.New(core).Named("pebble").Sugar()}

	l.Infof("[JOB %d] WAL %s recovered", 1, "000002.log")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "pebble", entries[0].LoggerName)
	assert.Equal(t, "[JOB 1] WAL 000002.log recovered", entries[0].Message)
}

func TestPebbleLoggerQuietAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := pebbleLogger{zap.New(core).Sugar()}

	l.Infof("compaction %d", 7)
	assert.Zero(t, logs.Len())
}
