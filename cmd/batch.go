package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	app "github.com/okian/gmassign/internal/app"
	"github.com/okian/gmassign/pkg/logger"
)

func newBatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Args:  cobra.NoArgs,
		Short: "Assign every pending activity once and print the run summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runBatch(ctx context.Context, opts *rootOptions, out io.Writer) (err error) {
	svc := app.New(app.WithConfig(opts.cfg), app.WithLogger(logger.Get()))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	// Stop drains queued notifications before exiting.
	defer func() {
		if stopErr := svc.Stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	sum, err := svc.RunBatch(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
