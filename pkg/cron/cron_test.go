package cron

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/pkg/services"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newService(t *testing.T) *services.Service {
	cnf := &config.ServerCmdConfig{}
	cnf.Auth.Secret = "s"
	cnf.Trash.Retention = time.Hour
	cnf.Trash.BatchSize = 10
	cnf.Trash.Concurrency = 1
	cnf.Share.Retention = time.Hour
	local, err := blob.NewLocal(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	return services.New(services.Options{Store: store.NewMemory(), Blob: local, Config: cnf})
}

func TestJobs(t *testing.T) {
	c := &CronService{svc: newService(t), logger: zap.NewNop()}
	jobs := c.Jobs(&config.CronJobConfig{
		TrashSweepInterval:  time.Hour,
		OrphanSweepInterval: 6 * time.Hour,
		SharePruneInterval:  12 * time.Hour,
	})
	require.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.NoError(t, job.Run(context.Background()), job.Name)
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := zapLogger{l: zap.New(core).Sugar()}
	l.Info("tick", "job", "trash-sweep")
	l.Error(errors.New("boom"), "panic", "job", "share-prune")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "tick", entries[0].Message)
	assert.Equal(t, "boom", entries[1].ContextMap()["err"])
}
