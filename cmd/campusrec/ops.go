package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/campusrec/campusrec/cmd/campusrec/cli"
	"github.com/campusrec/campusrec/internal/app"
	"github.com/campusrec/campusrec/jobs"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs.",
	}

	trigger := &cobra.Command{
		Use:   "trigger [task]",
		Short: "Enqueue a job now.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			name := jobs.TaskCatalogSync
			if len(args) == 1 {
				name = args[0]
			}
			jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer jobsCLI.Close()
			info, err := jobsCLI.Trigger(cmd.Context(), name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print default queue statistics.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer jobsCLI.Close()
			s, err := jobsCLI.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			return nil
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the role and permission catalog.",
	}

	var jsonOutput bool
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Report drift between the stored and the compiled catalog.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			storage, err := app.OpenStorage(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("open storage", slog.Any("error", err))
				return err
			}
			defer storage.Close(logger)
			catalogCLI, err := cli.NewCatalogCLI(storage.Store)
			if err != nil {
				return err
			}
			code := catalogCLI.VerifyCommand(cmd.Context(), cli.CatalogVerifyOptions{
				JSONOutput: jsonOutput,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
			if code != 0 {
				return fmt.Errorf("catalog verify exited with code %d", code)
			}
			return nil
		},
	}
	verify.Flags().BoolVar(&jsonOutput, "json", false, "print the summary as JSON")

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Upsert the compiled catalog into the store now.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			storage, err := app.OpenStorage(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("open storage", slog.Any("error", err))
				return err
			}
			defer storage.Close(logger)
			return jobs.NewCatalogSyncJob(storage.Store, logger, nil).Run(cmd.Context(), "cli")
		},
	}

	cmd.AddCommand(verify, sync)
	return cmd
}
