package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/internal/logging"
	"github.com/tgdrive/clouddrive/pkg/services"
	"go.uber.org/zap"
)

// zapLogger adapts zap to cron.Logger.
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z zapLogger) Info(msg string, keysAndValues ...any) {
	z.l.Debugw(msg, keysAndValues...)
}

func (z zapLogger) Error(err error, msg string, keysAndValues ...any) {
	z.l.Errorw(msg, append(keysAndValues, "err", err)...)
}

type CronService struct {
	svc    *services.Service
	logger *zap.Logger
}

// Job is one scheduled task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

func (c *CronService) Jobs(cnf *config.CronJobConfig) []Job {
	return []Job{
		{Name: "trash-sweep", Every: cnf.TrashSweepInterval, Run: c.SweepTrash},
		{Name: "orphan-reclaim", Every: cnf.OrphanSweepInterval, Run: c.ReclaimOrphans},
		{Name: "share-prune", Every: cnf.SharePruneInterval, Run: c.PruneShares},
	}
}

func (c *CronService) SweepTrash(ctx context.Context) error {
	_, err := c.svc.Sweeper.ExpirySweep(ctx)
	return err
}

func (c *CronService) ReclaimOrphans(ctx context.Context) error {
	_, err := c.svc.Sweeper.ReclaimOrphans(ctx)
	return err
}

func (c *CronService) PruneShares(ctx context.Context) error {
	n, err := c.svc.Shares.Prune(ctx)
	if n > 0 {
		c.logger.Info("pruned share links", zap.Int("count", n))
	}
	return err
}

// StartCronJobs schedules the maintenance jobs and stops them when ctx is
// done. Overlapping runs of the same job are skipped.
func StartCronJobs(ctx context.Context, svc *services.Service, cnf *config.CronJobConfig) *cron.Cron {
	logger := logging.FromContext(ctx).Named("cron")
	cl := zapLogger{l: logger.Sugar()}
	scheduler := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	c := &CronService{svc: svc, logger: logger}
	for _, job := range c.Jobs(cnf) {
		if job.Every <= 0 {
			logger.Info("job disabled", zap.String("job", job.Name))
			continue
		}
		scheduler.Schedule(cron.Every(job.Every), cron.FuncJob(func() {
			start := time.Now()
			if err := job.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("job failed", zap.String("job", job.Name), zap.Error(err))
				return
			}
			logger.Debug("job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
		}))
	}
	scheduler.Start()

	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
	}()
	return scheduler
}
