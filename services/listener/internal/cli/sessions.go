package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd(a *app) *cobra.Command {
	var (
		limit, offset int
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List your listening sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			page, err := a.client.ListSessions(cmd.Context(), limit, offset)
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, page)
			}
			if len(page.Sessions) == 0 {
				fmt.Fprintln(out, "No sessions yet. Start one with `listen play <file>`.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tLENGTH\tCREATED")
			for _, s := range page.Sessions {
				title := s.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, truncate(title, 40), formatDuration(s.DurationSeconds), s.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			shown := offset + len(page.Sessions)
			fmt.Fprintf(out, "\nShowing %d-%d of %d.", offset+1, shown, page.Total)
			if shown < page.Total {
				fmt.Fprintf(out, " Next page: --offset %d", shown)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "sessions per page (max 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "sessions to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func formatDuration(secs int) string {
	if secs <= 0 {
		return "-"
	}
	return (time.Duration(secs) * time.Second).String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
