/*
aggregate.go - Time statistics grouped by a dimension

PURPOSE:
  Sums recorded minutes per group and reports hours and share of the total.

DIMENSIONS:
  day      key/name "2024-03-01"   (StartTime in the configured location)
  week     key/name "2024-W09"     (ISO 8601 week)
  month    key/name "2024-03"
  employee key EmployeeID, name employee name
  project  key ProjectID,  name project name ("N/A" when the task has none)
  task     key TaskID,     name task title

RULES:
  - Open entries (no duration) are excluded
  - Hours = minutes / 60, rounded to 2 decimals
  - Percentage = group minutes / total minutes * 100, rounded to 2 decimals
    (0 for every group when the total is 0)
  - Time dimensions are ordered by period ascending; the others by hours
    descending, then name

PRECISION:
  Uses decimal.Decimal so hours and percentages don't drift the way repeated
  float division does; percentages sum to 100 within rounding.
*/
package tracking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GroupBy is an aggregation dimension.
type GroupBy string

const (
	GroupByDay      GroupBy = "day"
	GroupByWeek     GroupBy = "week"
	GroupByMonth    GroupBy = "month"
	GroupByEmployee GroupBy = "employee"
	GroupByProject  GroupBy = "project"
	GroupByTask     GroupBy = "task"
)

// ParseGroupBy accepts a dimension name, case-insensitively.
func ParseGroupBy(s string) (GroupBy, error) {
	g := GroupBy(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GroupByDay, GroupByWeek, GroupByMonth, GroupByEmployee, GroupByProject, GroupByTask:
		return g, nil
	}
	return "", &InvalidInputError{
		Field:  "group_by",
		Reason: fmt.Sprintf("unsupported value %q (use day, week, month, employee, project or task)", s),
	}
}

func (g GroupBy) isTimeDimension() bool {
	return g == GroupByDay || g == GroupByWeek || g == GroupByMonth
}

// Stats is the aggregated view returned by GetStats.
type Stats struct {
	Group      GroupBy
	TotalHours decimal.Decimal
	Entries    []StatsEntry
}

// StatsEntry is one group.
type StatsEntry struct {
	ID         string
	Name       string
	Minutes    int64
	Hours      decimal.Decimal
	Percentage decimal.Decimal
}

var (
	sixty   = decimal.NewFromInt(60)
	hundred = decimal.NewFromInt(100)
)

// Aggregate groups closed entries by the dimension. loc controls the
// calendar used for day/week/month; nil means UTC.
func Aggregate(entries []TimeEntry, by GroupBy, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}

	groups := make(map[string]*StatsEntry)
	var order []string
	var total int64

	for _, e := range entries {
		if e.DurationMinutes == nil {
			continue
		}
		id, name := groupKey(e, by, loc)
		g, ok := groups[id]
		if !ok {
			g = &StatsEntry{ID: id, Name: name}
			groups[id] = g
			order = append(order, id)
		}
		minutes := int64(*e.DurationMinutes)
		g.Minutes += minutes
		total += minutes
	}

	stats := Stats{
		Group:      by,
		TotalHours: minutesToHours(total),
		Entries:    make([]StatsEntry, 0, len(order)),
	}
	for _, id := range order {
		g := groups[id]
		g.Hours = minutesToHours(g.Minutes)
		g.Percentage = decimal.Zero
		if total > 0 {
			g.Percentage = decimal.NewFromInt(g.Minutes).Mul(hundred).
				Div(decimal.NewFromInt(total)).Round(2)
		}
		stats.Entries = append(stats.Entries, *g)
	}

	sortStats(stats.Entries, by)
	return stats
}

func minutesToHours(m int64) decimal.Decimal {
	return decimal.NewFromInt(m).Div(sixty).Round(2)
}

func groupKey(e TimeEntry, by GroupBy, loc *time.Location) (id, name string) {
	start := e.StartTime.In(loc)
	switch by {
	case GroupByDay:
		id = start.Format("2006-01-02")
		return id, id
	case GroupByWeek:
		y, w := start.ISOWeek()
		id = fmt.Sprintf("%04d-W%02d", y, w)
		return id, id
	case GroupByMonth:
		id = start.Format("2006-01")
		return id, id
	case GroupByEmployee:
		return string(e.EmployeeID), e.Details.EmployeeName
	case GroupByProject:
		name = e.Details.ProjectName
		if e.Details.ProjectID == "" || name == "" {
			name = NoProjectName
		}
		return string(e.Details.ProjectID), name
	default:
		return string(e.TaskID), e.Details.TaskTitle
	}
}

func sortStats(entries []StatsEntry, by GroupBy) {
	if by.isTimeDimension() {
		sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Minutes != b.Minutes {
			return a.Minutes > b.Minutes
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}
