package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const barWidth = 20

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show quiz totals, streak and recent scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := a.client.Dashboard(ctx)
			if err != nil {
				return explain(err)
			}
			trends, err := a.client.ScoreTrends(ctx)
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{"dashboard": d, "score_trends": trends})
			}

			fmt.Fprintf(out, "Comprehension Stats\n")
			fmt.Fprintf(out, "===================\n\n")
			fmt.Fprintf(out, "Quizzes completed:     %d\n", d.TotalQuizzesCompleted)
			fmt.Fprintf(out, "Average score:         %.2f%%\n", d.AverageComprehensionScore)
			fmt.Fprintf(out, "Daily streak:          %d day(s)\n", d.DailyStreak)
			fmt.Fprintf(out, "Sessions with quizzes: %d\n", d.SessionsWithQuizzes)

			if len(trends) == 0 {
				return nil
			}
			fmt.Fprintf(out, "\nRecent sessions\n")
			for _, t := range trends {
				title := "(untitled)"
				if t.ContentTitle != nil && *t.ContentTitle != "" {
					title = *t.ContentTitle
				}
				fmt.Fprintf(out, "  %s  %-30s %s %3.0f%% (%d)\n", t.Date, truncate(title, 30), bar(t.Score), t.Score, t.Attempts)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// bar draws score (0-100) as a fixed-width gauge.
func bar(score float64) string {
	n := int(score/100*barWidth + 0.5)
	n = max(0, min(n, barWidth))
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", barWidth-n) + "]"
}
