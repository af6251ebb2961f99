package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(t *testing.T, level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), recorded
}

func selectQuery() (string, int64) {
	return "SELECT * FROM fee_assignments WHERE tenant_id = ?", 3
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(t, gormlogger.Info)

	quieter := gl.LogMode(gormlogger.Warn)

	// LogMode clones; the original keeps its level
	assert.Equal(t, gormlogger.Info, gl.level)
	clone, ok := quieter.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, clone.level)
}

func TestGormLogger_LevelGating(t *testing.T) {
	gl, recorded := newObservedGormLogger(t, gormlogger.Silent)

	gl.Info(context.Background(), "suppressed %s", "info")
	gl.Warn(context.Background(), "suppressed warn")
	gl.Error(context.Background(), "suppressed error")
	gl.Trace(context.Background(), time.Now(), selectQuery, nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := newObservedGormLogger(t, gormlogger.Info)

	gl.Info(context.Background(), "connected to %s", "postgres")
	gl.Warn(context.Background(), "pool nearly exhausted")
	gl.Error(context.Background(), "connection lost")

	logs := recorded.All()
	require.Len(t, logs, 3)
	assert.Equal(t, "connected to postgres", logs[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs[2].Level)
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("failed statement logs at error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), selectQuery, errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Error", logs[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), selectQuery, gormlogger.ErrRecordNotFound)

		assert.Empty(t, recorded.All())
	})

	t.Run("slow statement logs at warn", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Warn)
		gl.SlowThreshold(time.Nanosecond)

		gl.Trace(context.Background(), time.Now().Add(-time.Second), selectQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "Slow SQL", logs[0].Message)
	})

	t.Run("ordinary statement logs at debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Info)

		gl.Trace(context.Background(), time.Now(), selectQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Query", logs[0].Message)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	})

	t.Run("request id from context is attached", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(t, gormlogger.Info)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")

		gl.Trace(ctx, time.Now(), selectQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "req-42", fields["request_id"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
		{"bogus", gormlogger.Warn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapGormLogLevel(tt.in), "level %q", tt.in)
	}
}
