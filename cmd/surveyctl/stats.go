package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"surveycore/internal/core"
	"surveycore/internal/filter"
	"surveycore/internal/stats"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		crit   criteriaFlags
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise responses: question and area averages, ranking, correlations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := crit.criteria()
			if err != nil {
				return err
			}
			return a.withService(cmd, func(_ context.Context, svc *core.Service) error {
				records := filter.Apply(svc.List(), svc.Schema(), criteria)
				summary := stats.Summarize(records, svc.Schema(), svc.Settings().Analysis, time.Now())
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), summary)
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	crit.register(cmd)
	return cmd
}

func printSummary(out io.Writer, s stats.Summary) {
	fmt.Fprintf(out, "responses: %d  completeness: %.0f%%  overall: %s\n\n",
		s.TotalResponses, s.AverageCompleteness*100, fmtAvg(s.OverallAverage))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AREA\tAVERAGE\tRESPONSES")
	for _, area := range s.Areas {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", area.Name, fmtAvg(area.Average), area.Responses)
	}
	_ = tw.Flush()

	fmt.Fprintln(out, "\nstrengths:")
	for _, q := range s.Ranking.Strengths {
		fmt.Fprintf(out, "  %-4s %.2f  %s\n", q.QuestionID, q.Average, q.Text)
	}
	fmt.Fprintln(out, "weaknesses:")
	for _, q := range s.Ranking.Weaknesses {
		fmt.Fprintf(out, "  %-4s %.2f  %s\n", q.QuestionID, q.Average, q.Text)
	}
	if len(s.Correlations) > 0 {
		fmt.Fprintln(out, "correlations:")
		for _, c := range s.Correlations {
			fmt.Fprintf(out, "  %s ~ %s  r=%+.2f  %s %s\n", c.QuestionID, c.OtherID, c.R, c.Strength, c.Direction)
		}
	}
}

func newCorrelateCmd(a *app) *cobra.Command {
	var (
		threshold float64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "correlate QUESTION",
		Short: "List the questions whose answers correlate with QUESTION",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(_ context.Context, svc *core.Service) error {
				t := threshold
				if !cmd.Flags().Changed("threshold") {
					t = svc.Settings().Analysis.CorrelationThreshold
				}
				out, err := stats.Correlate(svc.List(), svc.Schema(), args[0], t)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), out)
				}
				if len(out) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "no correlations with |r| >= %.2f\n", t)
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "QUESTION\tR\tSTRENGTH\tDIRECTION\tPAIRS")
				for _, c := range out {
					fmt.Fprintf(tw, "%s\t%+.3f\t%s\t%s\t%d\n", c.OtherID, c.R, c.Strength, c.Direction, c.SampleSize)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "minimum |r| (default analysis.correlationThreshold)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func fmtAvg(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
