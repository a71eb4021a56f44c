package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/agentrun-io/agentrun/config"
	"github.com/agentrun-io/agentrun/internal/adapters/scheduler"
	"github.com/agentrun-io/agentrun/internal/agent"
	"github.com/agentrun-io/agentrun/internal/agent/builtin"
	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/data"
	"github.com/agentrun-io/agentrun/internal/events"
	"github.com/agentrun-io/agentrun/internal/observability/statsd"
	"github.com/agentrun-io/agentrun/internal/pipeline"
	"github.com/agentrun-io/agentrun/internal/provider"
	"github.com/agentrun-io/agentrun/internal/service"
)

// stopTimeout bounds how long shutdown waits for in-flight jobs.
const stopTimeout = 30 * time.Second

// AppDeps holds the shared infrastructure the app is built from.
type AppDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// App is the assembled application: repositories, registries, the pipeline
// and the scheduler, ready to run.
type App struct {
	cfg    *config.AppConfig
	logger *slog.Logger

	Jobs      *service.JobService
	Schedules *service.ScheduleService
	Providers *provider.Registry
	Agents    *agent.Registry
	Pipeline  *pipeline.Pipeline
	Runner    *scheduler.Runner
	Stats     *statsd.Client
}

// NewApp wires the application from its dependencies.
func NewApp(deps AppDeps) (*App, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stats, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.StatsDEnabled,
		Address: cfg.Observability.StatsDAddress,
		Prefix:  cfg.Observability.StatsDPrefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("statsd client: %w", err)
	}

	var publisher core.EventPublisher = events.NopPublisher{}
	if deps.Redis != nil {
		publisher = events.NewRedisPublisher(events.RedisPublisherOptions{
			Client: deps.Redis,
			Logger: logger,
		})
	}

	providers := provider.NewRegistry(provider.RegistryOptions{
		Configs:         cfg.Providers.Configs(),
		DefaultProvider: cfg.Providers.Default,
		Logger:          logger,
	})

	agents := agent.NewRegistry()
	builtin.RegisterAll(agents, providers)
	runtime := agent.NewRuntime(agent.RuntimeOptions{Registry: agents, Logger: logger})

	jobRepo := data.NewJobRepo(deps.DB, data.JobRepoOptions{Logger: logger})
	scheduleRepo := data.NewScheduleRepo(deps.DB, data.ScheduleRepoOptions{Logger: logger})

	pipe := pipeline.New(pipeline.Options{
		Config:  cfg.Pipeline.ToCore(),
		Runtime: runtime,
		Jobs:    jobRepo,
		Events:  publisher,
		Stats:   stats,
		Logger:  logger,
	})

	schedulerCfg := cfg.Scheduler.ToCore()
	sweeper := service.NewSchedulerService(service.SchedulerServiceOptions{
		Schedules: scheduleRepo,
		Jobs:      jobRepo,
		Submitter: pipe,
		Config:    &schedulerCfg,
		Stats:     stats,
		Logger:    logger,
	})
	runner := scheduler.NewRunner(scheduler.RunnerOptions{
		Sweeper:  sweeper,
		Interval: schedulerCfg.CheckInterval,
		Logger:   logger,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		Jobs: service.NewJobService(service.JobServiceOptions{
			Jobs:      jobRepo,
			Submitter: pipe,
			Logger:    logger,
		}),
		Schedules: service.NewScheduleService(service.ScheduleServiceOptions{
			Schedules: scheduleRepo,
			Jobs:      jobRepo,
			Submitter: pipe,
			Logger:    logger,
		}),
		Providers: providers,
		Agents:    agents,
		Pipeline:  pipe,
		Runner:    runner,
		Stats:     stats,
	}, nil
}

// Run starts the enabled services and blocks until the context ends or a
// termination signal arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.IsPipelineEnabled() {
		a.Pipeline.Start()
	}
	if a.cfg.IsSchedulerEnabled() {
		a.Runner.Start()
	}
	a.logger.Info("agentrun started",
		"pipeline", a.cfg.IsPipelineEnabled(),
		"scheduler", a.cfg.IsSchedulerEnabled(),
		"agents", a.Agents.Names(),
		"providers", a.Providers.Available())

	<-ctx.Done()
	a.logger.Info("shutdown signal received")

	// The runner and pipeline drain independently.
	var g errgroup.Group
	g.Go(func() error {
		a.Runner.Stop()
		return nil
	})
	g.Go(func() error {
		return a.Pipeline.Stop(stopTimeout)
	})
	err := g.Wait()

	if cerr := a.Stats.Close(); cerr != nil {
		a.logger.Warn("close statsd failed", "error", cerr)
	}
	return err
}
