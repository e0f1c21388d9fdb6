package models

import (
	"fmt"
	"strings"
)

// DateLayout is the calendar date format exchanged with the backend.
const DateLayout = "2006-01-02"

// QuickPeriod is a named shortcut resolving to a start/end date pair.
type QuickPeriod string

const (
	PeriodNone       QuickPeriod = ""
	PeriodToday      QuickPeriod = "today"
	PeriodYesterday  QuickPeriod = "yesterday"
	PeriodWeek       QuickPeriod = "week"
	PeriodMonth      QuickPeriod = "month"
	PeriodYear       QuickPeriod = "year"
	PeriodLast7Days  QuickPeriod = "last7days"
	PeriodLast30Days QuickPeriod = "last30days"
)

// QuickPeriods lists every selectable period in display order.
var QuickPeriods = []QuickPeriod{
	PeriodToday,
	PeriodYesterday,
	PeriodWeek,
	PeriodMonth,
	PeriodYear,
	PeriodLast7Days,
	PeriodLast30Days,
}

// ParseQuickPeriod validates a period name. The empty string is PeriodNone.
func ParseQuickPeriod(raw string) (QuickPeriod, error) {
	p := QuickPeriod(strings.ToLower(strings.TrimSpace(raw)))
	if p == PeriodNone {
		return PeriodNone, nil
	}
	for _, known := range QuickPeriods {
		if p == known {
			return p, nil
		}
	}
	return PeriodNone, fmt.Errorf("unknown quick period %q", raw)
}

// FilterState holds the active indicator query filters. Empty strings mean
// "not filtered"; empty dates are an intentional unbounded range.
type FilterState struct {
	Type        string
	ZoneID      string
	Limit       int
	StartDate   string
	EndDate     string
	QuickPeriod QuickPeriod
}

// StatsRange is the date range of the stats tab, independent of FilterState.
type StatsRange struct {
	StartDate string
	EndDate   string
}
