package tracking

import "time"

// ComputeMinutes returns the whole minutes elapsed between start and end,
// rounded down. end == start yields 0; end before start yields ErrInvalidRange.
func ComputeMinutes(start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, ErrInvalidRange
	}
	return int(end.Sub(start) / time.Minute), nil
}

// closeEntry sets EndTime and the derived duration on an open entry.
func closeEntry(e TimeEntry, end time.Time) (TimeEntry, error) {
	end = Normalize(end)
	minutes, err := ComputeMinutes(e.StartTime, end)
	if err != nil {
		return e, &InvalidInputError{Field: "end_time", Reason: "must not be before start_time", Err: err}
	}
	out := e.Clone()
	out.EndTime = &end
	out.DurationMinutes = &minutes
	return out, nil
}
