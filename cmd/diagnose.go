package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	app "github.com/okian/gmassign/internal/app"
	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/pkg/logger"
)

type diagnoseOptions struct {
	req        assignment.Request
	candidates bool
}

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	d := &diagnoseOptions{}
	cmd := &cobra.Command{
		Use:   "diagnose",
		Args:  cobra.NoArgs,
		Short: "Explain, GM by GM, who could run an event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return diagnose(cmd.Context(), opts, d, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&d.req.Title, "title", "", "event title used to identify the game")
	f.StringVar(&d.req.Date, "date", "", "event date, YYYY-MM-DD")
	f.StringVar(&d.req.StartTime, "start", "", "start time, HH:MM")
	f.StringVar(&d.req.EndTime, "end", "", "end time, HH:MM")
	f.StringVar(&d.req.ActivityID, "activity", "", "stored activity id to ignore in conflict checks")
	f.BoolVar(&d.candidates, "candidates", false, "list candidates without drawing a GM")
	for _, name := range []string{"date", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func diagnose(ctx context.Context, opts *rootOptions, d *diagnoseOptions, out io.Writer) error {
	svc := app.New(app.WithConfig(opts.cfg), app.WithLogger(logger.Get()), app.WithoutSchedule())
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = svc.Stop(context.WithoutCancel(ctx)) }()

	var (
		dec assignment.Decision
		err error
	)
	if d.candidates {
		dec, err = svc.Candidates(ctx, d.req)
	} else {
		dec, err = svc.Decide(ctx, d.req)
	}
	if err != nil {
		return err
	}
	return printDecision(out, dec)
}

func printDecision(out io.Writer, d assignment.Decision) error {
	if d.GameMatch.Found() {
		fmt.Fprintf(out, "game: %s (%s, confidence %.0f)\n", d.GameMatch.GameName, d.GameMatch.GameID, d.GameMatch.Confidence)
	} else {
		fmt.Fprintln(out, "game: none identified")
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GM\tNAME\tELIGIBLE\tWEIGHT\tREASON")
	for _, v := range d.Trace {
		weight := "-"
		if v.Result != nil {
			weight = fmt.Sprintf("%g", v.Result.Weight)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", v.GM.ID, v.GM.Name, v.Eligible, weight, v.Reason.Describe())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	switch {
	case d.SelectedGM != nil:
		fmt.Fprintf(out, "selected: %s (%s)\n", d.SelectedGM.ID, d.SelectedGM.Name)
	case d.FailureReason != "":
		fmt.Fprintf(out, "no selection: %s\n", d.FailureReason)
	default:
		fmt.Fprintf(out, "candidates: %d\n", len(d.EligibleGMs))
	}
	return nil
}
