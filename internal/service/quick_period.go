package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/ecotrack-console/internal/models"
)

// ResolveQuickPeriod maps a named period to inclusive calendar dates relative
// to today. All arithmetic happens in today's location, so the caller decides
// which calendar applies. Weeks start on Sunday.
func ResolveQuickPeriod(period models.QuickPeriod, today time.Time) (start, end string, err error) {
	y, m, d := today.Date()
	loc := today.Location()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var from, to time.Time
	switch period {
	case models.PeriodToday:
		from, to = day, day
	case models.PeriodYesterday:
		from = day.AddDate(0, 0, -1)
		to = from
	case models.PeriodWeek:
		from, to = day.AddDate(0, 0, -int(day.Weekday())), day
	case models.PeriodMonth:
		from = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		to = time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	case models.PeriodYear:
		from = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		to = time.Date(y, time.December, 31, 0, 0, 0, 0, loc)
	case models.PeriodLast7Days:
		from, to = day.AddDate(0, 0, -7), day
	case models.PeriodLast30Days:
		from, to = day.AddDate(0, 0, -30), day
	default:
		return "", "", fmt.Errorf("unknown quick period %q", period)
	}
	return from.Format(models.DateLayout), to.Format(models.DateLayout), nil
}

// DefaultStatsRange is the stats tab range before the user picks one: the
// whole current year.
func DefaultStatsRange(today time.Time) models.StatsRange {
	start, end, _ := ResolveQuickPeriod(models.PeriodYear, today)
	return models.StatsRange{StartDate: start, EndDate: end}
}
