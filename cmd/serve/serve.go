// Package serve implements the serve command: the status server plus
// scheduled sync runs.
package serve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/problemsync/cmd/common"
	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/pipeline"
	"github.com/jonesrussell/north-cloud/problemsync/internal/server"
	"github.com/jonesrussell/north-cloud/problemsync/internal/workitem"
)

// Command creates the serve command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and run status, optionally syncing on a schedule",
		Example: `  problemsync serve --schedule "@every 6h"
  problemsync serve --schedule "0 3 * * *" --addr :9090`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			for key, flag := range map[string]string{
				common.KeySchedule:   "schedule",
				common.KeyServerAddr: "addr",
				common.KeyCSVPath:    "csv",
			} {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("bind --%s: %w", flag, err)
				}
			}
			return nil
		},
		RunE: run,
	}

	cmd.Flags().String("schedule", "", `cron spec or descriptor for periodic syncs, e.g. "@every 6h"`)
	cmd.Flags().String("addr", "", "listen address (default from config)")
	cmd.Flags().String("csv", "", "CSV file listing problems (default from config)")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	log, err := common.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := common.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	runner := &runner{app: app, log: logger.Component(log, "scheduler"), ctx: ctx}

	checks := map[string]server.HealthChecker{
		"checkpoint": server.PingChecker("checkpoint store", true, app.Store.Ping),
	}
	if app.Notion != nil {
		checks["notion"] = server.PingChecker("notion", false, app.Notion.Ping)
	}

	srv := server.New(cfg.Server, server.Deps{
		Status:     app.Orchestrator,
		Gatherer:   app.Registry,
		Registerer: app.Registry,
		Checks:     checks,
		Trigger:    runner.trigger,
		Version:    common.Version,
	}, log)

	if cfg.Schedule != "" {
		c, schedErr := newScheduler(cfg.Schedule, runner)
		if schedErr != nil {
			return schedErr
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Info("Scheduled sync runs", logger.String("schedule", cfg.Schedule))
	}

	err = srv.Run(ctx)
	runner.wait()
	return err
}

// runner starts sync runs from the scheduler and the HTTP trigger.
type runner struct {
	app *common.App
	log logger.Logger
	ctx context.Context
	wg  sync.WaitGroup
}

// trigger starts a run in the background.
func (r *runner) trigger() error {
	if r.app.Orchestrator.Status().Running {
		return pipeline.ErrRunInProgress
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runOnce()
	}()
	return nil
}

func (r *runner) runOnce() {
	items, err := workitem.LoadCSV(r.app.Config.CSVPath)
	if err != nil {
		r.log.Error("Failed to load work items", logger.Error(err))
		return
	}

	summary, err := r.app.Orchestrator.Run(r.ctx, items)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		r.log.Info("Skipping sync, previous run still in progress")
	case err != nil:
		r.log.Error("Sync run aborted", logger.String("run_id", summary.RunID), logger.Error(err))
	default:
		r.log.Info("Scheduled sync finished",
			logger.String("run_id", summary.RunID),
			logger.Int("processed", summary.Processed),
			logger.Int("failed", summary.Failed()),
		)
	}
}

func (r *runner) wait() {
	r.wg.Wait()
}

func newScheduler(spec string, r *runner) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{log: r.log}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, r.runOnce); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return c, nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
