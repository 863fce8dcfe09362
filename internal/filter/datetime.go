package filter

import (
	"fmt"
	"strings"
	"time"
)

// Precision is the granularity a filter timestamp was written with. Equality on a timestamp
// matches the whole unit, so date_eq=2024-03-15 covers the full day.
type Precision string

const (
	PrecisionMicrosecond Precision = "microseconds"
	PrecisionMillisecond Precision = "milliseconds"
	PrecisionSecond      Precision = "second"
	PrecisionMinute      Precision = "minute"
	PrecisionHour        Precision = "hour"
	PrecisionDay         Precision = "day"
)

// Statement dates are usually written as plain dates, so those layouts come first after the
// RFC3339 forms.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDateTime parses a filter value written in one of the accepted date or timestamp layouts.
func ParseDateTime(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

func precisionOfString(value string) Precision {
	if _, fraction, ok := strings.Cut(value, "."); ok && strings.Contains(value, ":") {
		fraction = strings.TrimSuffix(fraction, "Z")
		if idx := strings.IndexAny(fraction, "+-"); idx != -1 {
			fraction = fraction[:idx]
		}
		if len(fraction) >= 6 {
			return PrecisionMicrosecond
		}
		if len(fraction) > 0 {
			return PrecisionMillisecond
		}
	}

	switch strings.Count(value, ":") {
	case 0:
		if strings.ContainsAny(value, "T ") {
			return PrecisionHour
		}
		return PrecisionDay
	case 1:
		return PrecisionMinute
	default:
		return PrecisionSecond
	}
}

func precisionOfTime(t time.Time) Precision {
	switch {
	case t.Nanosecond()%int(time.Millisecond) != 0:
		return PrecisionMicrosecond
	case t.Nanosecond() != 0:
		return PrecisionMillisecond
	case t.Second() != 0:
		return PrecisionSecond
	case t.Minute() != 0:
		return PrecisionMinute
	case t.Hour() != 0:
		return PrecisionHour
	default:
		return PrecisionDay
	}
}

var precisionUnits = map[Precision]time.Duration{
	PrecisionMicrosecond: time.Microsecond,
	PrecisionMillisecond: time.Millisecond,
	PrecisionSecond:      time.Second,
	PrecisionMinute:      time.Minute,
	PrecisionHour:        time.Hour,
}

// timestampRange returns the half-open interval [floor, ceiling) covered by ts.
func timestampRange(ts TimestampValue) (floor time.Time, ceiling time.Time) {
	if ts.Precision == PrecisionDay {
		y, m, d := ts.Time.Date()
		floor = time.Date(y, m, d, 0, 0, 0, 0, ts.Time.Location())
		return floor, floor.AddDate(0, 0, 1)
	}

	unit, ok := precisionUnits[ts.Precision]
	if !ok {
		unit = time.Second
	}
	floor = ts.Time.Truncate(unit)
	return floor, floor.Add(unit)
}
