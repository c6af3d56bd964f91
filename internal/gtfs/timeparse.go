package gtfs

import (
	"fmt"
	"regexp"
	"time"
)

var gtfsTimePattern = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})$`)

// ParseDate parses a GTFS YYYYMMDD service date into a calendar date in the
// given location, at midnight.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("20060102", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing service date %q: %w", s, err)
	}
	return t, nil
}

// ParseTime resolves a GTFS HH:MM:SS time against a service date in the
// given location. Hours of 24 and above roll over into the following days,
// so a 25:10:00 departure on Friday lands at 01:10 Saturday.
func ParseTime(s string, serviceDate time.Time, loc *time.Location) (time.Time, error) {
	m := gtfsTimePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed time %q", s)
	}
	var hour, minute, sec int
	fmt.Sscanf(m[1], "%d", &hour)
	fmt.Sscanf(m[2], "%d", &minute)
	fmt.Sscanf(m[3], "%d", &sec)
	if minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("malformed time %q", s)
	}

	dayOffset := hour / 24
	hour %= 24

	year, month, day := serviceDate.Date()
	return time.Date(year, month, day+dayOffset, hour, minute, sec, 0, loc), nil
}
