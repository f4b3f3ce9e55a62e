package logging

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogger(t *testing.T) {
	repeat := 5
	var wait sync.WaitGroup
	loggerChan := make(chan *zap.Logger, repeat)

	for i := 0; i < repeat; i++ {
		wait.Add(1)
		go func() {
			defer wait.Done()
			loggerChan <- DefaultLogger()
		}()
	}
	wait.Wait()

	l := DefaultLogger()
	for i := 0; i < repeat; i++ {
		assert.Same(t, l, <-loggerChan)
	}
}

func TestFromContext(t *testing.T) {
	assert.Same(t, DefaultLogger(), FromContext(context.Background()))

	l1 := zap.NewNop()
	ctx := WithLogger(context.Background(), l1)
	assert.Same(t, l1, FromContext(ctx))
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	ctx = With(ctx, zap.String("owner", "alice"))
	FromContext(ctx).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "alice", entries[0].ContextMap()["owner"])
	}
}

func TestParseConfig(t *testing.T) {
	c := ParseConfig("debug", "")
	assert.Equal(t, zapcore.DebugLevel, c.Level)

	c = ParseConfig("nonsense", "x.log")
	assert.Equal(t, zapcore.InfoLevel, c.Level)
	assert.Equal(t, "x.log", c.FilePath)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	lg := NewLogger(&Config{Level: zapcore.InfoLevel, FilePath: path})
	lg.Info("written")
	_ = lg.Sync()
	assert.FileExists(t, path)
}
