package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/warp/timetrack/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load employees, projects and tasks from a YAML fixture (demo data if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture := seed.Demo()
		if len(args) == 1 {
			var err error
			if fixture, err = seed.LoadFile(args[0]); err != nil {
				return err
			}
		}

		store, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := seed.Apply(cmd.Context(), store, fixture); err != nil {
			return err
		}
		logger.Info("directory seeded",
			slog.Int("employees", len(fixture.Employees)),
			slog.Int("projects", len(fixture.Projects)),
			slog.Int("tasks", len(fixture.Tasks)))
		return nil
	},
}
