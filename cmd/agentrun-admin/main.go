// Command agentrun-admin provides operational tooling: applying migrations,
// inspecting jobs stuck in running status, and requeueing them after a crash.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/agentrun-io/agentrun/config"
	"github.com/agentrun-io/agentrun/internal/bootstrap"
	"github.com/agentrun-io/agentrun/internal/data"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2)
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	cmdCtx := &commandContext{Ctx: context.Background(), Logger: logger, Config: cfg}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1)
	}
}

func commands() map[string]command {
	cmds := []command{
		{
			name:        "migrate",
			description: "Apply pending database migrations",
			run:         runMigrate,
		},
		{
			name:        "stuck-jobs",
			description: "List jobs stuck in running status",
			run:         runStuckJobs,
		},
		{
			name:        "requeue-job",
			description: "Flip a stuck running job back to pending",
			run:         runRequeueJob,
		},
	}
	out := make(map[string]command, len(cmds))
	for _, c := range cmds {
		out[c.name] = c
	}
	return out
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: agentrun-admin <command> [flags]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0)
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, commands()[name].description)
	}
}

func openDB(ctx *commandContext) (*sql.DB, func(), error) {
	db, err := bootstrap.ConnectDB(ctx.Config.Postgres, ctx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if cerr := db.Close(); cerr != nil {
			ctx.Logger.Error("close database failed", "error", cerr)
		}
	}
	return db, cleanup, nil
}

func runMigrate(ctx *commandContext, _ []string) error {
	db, cleanup, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	mctx, cancel := context.WithTimeout(ctx.Ctx, defaultMigrationTimeout)
	defer cancel()
	return bootstrap.RunMigrations(mctx, db, ctx.Logger)
}

func runStuckJobs(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("stuck-jobs", flag.ContinueOnError)
	olderThan := fs.Duration("older-than", 30*time.Minute, "minimum age of the last update")
	limit := fs.Int("limit", 50, "maximum number of jobs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, cleanup, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	repo := data.NewJobRepo(db, data.JobRepoOptions{Logger: ctx.Logger})
	cutoff := time.Now().Add(-*olderThan)
	jobs, err := repo.ListStuckRunning(ctx.Ctx, cutoff, *limit)
	if err != nil {
		return fmt.Errorf("list stuck jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("no stuck jobs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tAGENT\tUPDATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.ID, j.UserID, j.AgentName, j.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runRequeueJob(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("requeue-job", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: agentrun-admin requeue-job <job-id>")
	}
	jobID := fs.Arg(0)

	db, cleanup, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	repo := data.NewJobRepo(db, data.JobRepoOptions{Logger: ctx.Logger})
	requeued, err := repo.RequeueRunning(ctx.Ctx, jobID)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	if !requeued {
		return fmt.Errorf("job %s is not in running status", jobID)
	}
	fmt.Printf("job %s requeued\n", jobID)
	return nil
}
