package remote

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Range presets understood by the service directly.
const (
	RangeThisWeek   = "this_week"
	RangeLastWeek   = "last_week"
	RangeLast30Days = "last_30_days"
)

// Range presets converted to explicit dates before the call.
const (
	RangeThisMonth = "this_month"
	RangeLastMonth = "last_month"
	RangeThisYear  = "this_year"
	RangeLastYear  = "last_year"
	RangeCustom    = "custom"
)

var (
	nativeRanges  = []string{RangeThisWeek, RangeLastWeek, RangeLast30Days}
	derivedRanges = []string{RangeThisMonth, RangeLastMonth, RangeThisYear, RangeLastYear}
)

// Presets lists every accepted preset name.
func Presets() []string {
	return append(slices.Clone(nativeRanges), derivedRanges...)
}

// KnownPreset reports whether name is an accepted preset.
func KnownPreset(name string) bool {
	return slices.Contains(nativeRanges, name) || slices.Contains(derivedRanges, name)
}

// Range selects meetings by date. Start and End, when set, are inclusive
// YYYY-MM-DD dates and take precedence over Preset.
type Range struct {
	Preset string
	Start  string
	End    string
}

// NewRange validates explicit dates. Both or neither of from and to must be set.
func NewRange(preset, from, to string) (Range, error) {
	r := Range{
		Preset: strings.ToLower(strings.TrimSpace(preset)),
		Start:  strings.TrimSpace(from),
		End:    strings.TrimSpace(to),
	}
	if (r.Start == "") != (r.End == "") {
		return Range{}, errors.New("date range: --from and --to must be given together")
	}
	if r.Start != "" {
		start, err := time.Parse(time.DateOnly, r.Start)
		if err != nil {
			return Range{}, fmt.Errorf("date range: invalid start %q (want YYYY-MM-DD)", r.Start)
		}
		end, err := time.Parse(time.DateOnly, r.End)
		if err != nil {
			return Range{}, fmt.Errorf("date range: invalid end %q (want YYYY-MM-DD)", r.End)
		}
		if end.Before(start) {
			return Range{}, fmt.Errorf("date range: end %s is before start %s", r.End, r.Start)
		}
		r.Preset = RangeCustom
	}
	return r, nil
}

// Label describes the range for display.
func (r Range) Label() string {
	if r.Start != "" && r.End != "" {
		return r.Start + " to " + r.End
	}
	if r.Preset == "" {
		return RangeLast30Days
	}
	return r.Preset
}

// Arguments builds the list_meetings tool arguments. Unknown presets fall
// back to the last 30 days.
func (r Range) Arguments(now time.Time) map[string]any {
	if r.Start != "" && r.End != "" {
		return customArgs(r.Start, r.End)
	}
	if slices.Contains(nativeRanges, r.Preset) {
		return map[string]any{"time_range": r.Preset}
	}
	if start, end, ok := derivedDates(r.Preset, now); ok {
		return customArgs(start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return map[string]any{"time_range": RangeLast30Days}
}

func customArgs(start, end string) map[string]any {
	return map[string]any{"time_range": RangeCustom, "custom_start": start, "custom_end": end}
}

func derivedDates(preset string, now time.Time) (time.Time, time.Time, bool) {
	year, month, _ := now.Date()
	loc := now.Location()
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	switch preset {
	case RangeThisMonth:
		return firstOfMonth, now, true
	case RangeLastMonth:
		end := firstOfMonth.AddDate(0, 0, -1)
		return time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, loc), end, true
	case RangeThisYear:
		return time.Date(year, time.January, 1, 0, 0, 0, 0, loc), now, true
	case RangeLastYear:
		return time.Date(year-1, time.January, 1, 0, 0, 0, 0, loc), time.Date(year-1, time.December, 31, 0, 0, 0, 0, loc), true
	default:
		return time.Time{}, time.Time{}, false
	}
}
