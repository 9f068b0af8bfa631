package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/curation-backend/internal/app"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed default settings and prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate()
		},
	})
}
