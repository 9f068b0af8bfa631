package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/curation-backend/internal/app"
	"github.com/yungbote/curation-backend/internal/services"
)

func init() {
	curate := &cobra.Command{
		Use:   "curate",
		Short: "Run one generation inline from a trigger request (JSON file or stdin)",
		RunE:  runCurate,
	}
	curate.Flags().StringP("file", "f", "-", "trigger request JSON, - for stdin")
	rootCmd.AddCommand(curate)

	validate := &cobra.Command{
		Use:   "validate <curation-id>",
		Short: "Grade the ungraded rows of a curation inline",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	validate.Flags().Bool("revalidate", false, "grade every row, not only ungraded ones")
	validate.Flags().Int("concurrency", 0, "rows graded concurrently (0 uses the configured value)")
	rootCmd.AddCommand(validate)
}

// inlineApp builds the app without the HTTP server and the job worker.
func inlineApp(ctx context.Context) (*app.App, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.RunServer = false
	cfg.RunWorker = false
	return app.NewWithConfig(ctx, cfg)
}

func runCurate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	var req services.TriggerRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decode trigger request: %w", err)
	}

	a, err := inlineApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	res, err := a.Services.Curation.Trigger(cmd.Context(), req, true)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runValidate(cmd *cobra.Command, args []string) error {
	curationID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid curation id: %w", err)
	}
	revalidate, _ := cmd.Flags().GetBool("revalidate")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	a, err := inlineApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	res, err := a.Services.Curation.Validate(cmd.Context(), curationID, services.ValidateRequest{
		Revalidate:  revalidate,
		Concurrency: concurrency,
	}, true)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
