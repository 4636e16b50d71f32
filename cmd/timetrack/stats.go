package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/timetrack/api"
	"github.com/warp/timetrack/tracking"
)

var (
	statsGroupBy  string
	statsFrom     string
	statsTo       string
	statsEmployee string
	statsProject  string
	statsTask     string
	statsJSON     bool

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print aggregated hours for closed entries",
		RunE:  runStats,
	}
)

func init() {
	f := statsCmd.Flags()
	f.StringVar(&statsGroupBy, "group-by", "project", "day, week, month, employee, project or task")
	f.StringVar(&statsFrom, "from", "", "inclusive lower bound (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&statsTo, "to", "", "upper bound; a date includes the whole day")
	f.StringVar(&statsEmployee, "employee", "", "employee id")
	f.StringVar(&statsProject, "project", "", "project id")
	f.StringVar(&statsTask, "task", "", "task id")
	f.BoolVar(&statsJSON, "json", false, "print JSON instead of a table")
}

func runStats(cmd *cobra.Command, args []string) error {
	filter, err := statsFilter(cfg.Location())
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := newTracker(store).GetStats(cmd.Context(), filter, statsGroupBy)
	if err != nil {
		return err
	}
	if statsJSON {
		return writeStatsJSON(cmd.OutOrStdout(), stats)
	}
	return printStats(cmd.OutOrStdout(), stats)
}

// statsFilter resolves date-only bounds in loc, the stats calendar.
func statsFilter(loc *time.Location) (tracking.Filter, error) {
	var f tracking.Filter
	if statsFrom != "" {
		t, err := tracking.ParseBound("from", statsFrom, false, loc)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if statsTo != "" {
		t, err := tracking.ParseBound("to", statsTo, true, loc)
		if err != nil {
			return f, err
		}
		f.To = &t
	}
	if statsEmployee != "" {
		id := tracking.EmployeeID(statsEmployee)
		f.EmployeeID = &id
	}
	if statsProject != "" {
		id := tracking.ProjectID(statsProject)
		f.ProjectID = &id
	}
	if statsTask != "" {
		id := tracking.TaskID(statsTask)
		f.TaskID = &id
	}
	return f, nil
}

// writeStatsJSON prints the same document GET /api/stats returns.
func writeStatsJSON(w io.Writer, s *tracking.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewStatsDTO(s))
}

func printStats(w io.Writer, s *tracking.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tNAME\tHOURS\t%%\t\n", s.Group)
	for _, e := range s.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", e.ID, e.Name, e.Hours.StringFixed(2), e.Percentage.StringFixed(2))
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t\t\n", s.TotalHours.StringFixed(2))
	return tw.Flush()
}
