package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"mission-control/internal/seed"
	"mission-control/pkg/config"
	"mission-control/pkg/db"
	"mission-control/pkg/gen"
	"mission-control/pkg/hashistack/secretmanager"
	"mission-control/pkg/logger"
	"mission-control/pkg/redis"
	"mission-control/services/activity"
	"mission-control/services/agent"
	"mission-control/services/recurring"
)

//go:embed roster.yaml
var defaultRoster []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file  string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the squad roster and recurring tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var src io.Reader = bytes.NewReader(defaultRoster)
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			roster, err := seed.LoadRoster(src)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), roster, reset)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "roster YAML (defaults to the built-in squad)")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the activity log before seeding")
	return cmd
}

func run(ctx context.Context, out io.Writer, roster *seed.Roster, reset bool) error {
	var (
		agents *agent.Service
		tasks  *recurring.Service
		feed   *activity.Service
	)

	app := fx.New(
		config.Select(),
		secretmanager.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		agent.Store,
		recurring.Store,
		activity.Store,
		fx.Populate(&agents, &tasks, &feed),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	if reset {
		n, err := feed.ClearAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "cleared %d activities\n", n)
	}

	res, err := seed.Apply(ctx, agents, tasks, roster)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "agents: %d created, %d already present\n", res.AgentsCreated, res.AgentsSkipped)
	fmt.Fprintf(out, "recurring tasks: %d created, %d already present\n", res.RecurringCreated, res.RecurringSkipped)
	return nil
}
