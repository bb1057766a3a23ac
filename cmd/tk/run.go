package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/threadkeeper/internal/app"
	"github.com/ibeckermayer/threadkeeper/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one collection pass now and print its report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		env, err := app.OpenEnvironment(cfg, nil, logger)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := env.RunOnce(ctx)
		if err != nil {
			return err
		}
		report.Render(os.Stdout, summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
