package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/curation-backend/internal/app"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job worker (RUN_SERVER / RUN_WORKER)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
}

func runServe(ctx context.Context) error {
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}
