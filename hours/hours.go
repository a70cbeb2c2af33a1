package hours

import (
	"fmt"
	"time"
)

const (
	intervalLayout = "15.04"
	// Layout used by the day-ahead market API for period bounds, always UTC.
	periodLayout = "200601021504"
)

var copenhagenLoc *time.Location

func init() {
	var err error
	copenhagenLoc, err = time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		panic(fmt.Sprintf("failed to load Copenhagen location: %v", err))
	}
}

// Copenhagen returns the location all price intervals and tax hours are expressed in.
func Copenhagen() *time.Location {
	return copenhagenLoc
}

func LocationCopenhagen(t time.Time) time.Time {
	return t.In(copenhagenLoc)
}

// IntervalKey labels the hour starting at t, e.g. "13.00-14.00" or "23.00-00.00".
func IntervalKey(t time.Time) string {
	t = t.In(copenhagenLoc)
	return t.Format(intervalLayout) + "-" + t.Add(time.Hour).Format(intervalLayout)
}

// IntervalKeyForHour labels a wall clock hour of day without involving a date,
// so it is never affected by daylight saving transitions.
func IntervalKeyForHour(hour int) string {
	return fmt.Sprintf("%02d.00-%02d.00", hour%24, (hour+1)%24)
}

func HourOfDay(t time.Time) int {
	return t.In(copenhagenLoc).Hour()
}

func Floor(t time.Time) time.Time {
	return t.Truncate(time.Hour).In(copenhagenLoc)
}

// Window returns the 24 hour fetch window starting at the beginning of the
// current hour.
func Window(now time.Time) (start, end time.Time) {
	start = Floor(now)
	return start, start.Add(24 * time.Hour)
}

func PeriodString(t time.Time) string {
	return t.UTC().Format(periodLayout)
}
