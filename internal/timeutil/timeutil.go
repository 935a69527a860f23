// Package timeutil converts between epoch seconds, wall-clock "hh:mm:ss"
// timestamps and calendar dates.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spectriclabs/ecms-sync/internal/dataset"
)

var ErrBadTimestamp = errors.New("timeutil: malformed timestamp")

const (
	TimestampLayout = "15:04:05"
	DateLayout      = "2006-01-02"
	secondsPerDay   = 24 * 60 * 60
)

// dateLayouts are tried in order when parsing a recording date.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"01/02/2006",
	"06-01-02",
	"02.01.2006",
}

// ParseLocation maps a configured timezone name to a location. The empty
// name and "local" mean the machine's zone.
func ParseLocation(name string) (*time.Location, error) {
	switch strings.ToLower(name) {
	case "", "local":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// TimestampToSeconds returns the seconds since midnight of "hh:mm:ss". The
// hour field may exceed 23 after a day shift.
func TimestampToSeconds(timestamp string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(timestamp), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%q: %w", timestamp, ErrBadTimestamp)
	}
	var fields [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%q: %w", timestamp, ErrBadTimestamp)
		}
		fields[i] = v
	}
	if fields[1] >= 60 || fields[2] >= 60 {
		return 0, fmt.Errorf("%q: %w", timestamp, ErrBadTimestamp)
	}
	return 3600*fields[0] + 60*fields[1] + fields[2], nil
}

// SecondsToTimestamp renders seconds since midnight as "hh:mm:ss",
// truncating fractions.
func SecondsToTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total - 3600*h) / 60
	s := total - 3600*h - 60*m
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// DayShift moves the dataset's clock timestamp by whole days, so that the
// hour field runs past 24.
func DayShift(d *dataset.Dataset, days int) error {
	seconds, err := TimestampToSeconds(d.Timestamp)
	if err != nil {
		return err
	}
	d.Timestamp = SecondsToTimestamp(seconds + float64(days*secondsPerDay))
	return nil
}

// TimestampToEpoch combines a clock timestamp and a date into epoch
// seconds, interpreting both in loc. An empty date means today.
func TimestampToEpoch(timestamp string, date string, loc *time.Location) (float64, error) {
	if loc == nil {
		loc = time.Local
	}
	seconds, err := TimestampToSeconds(timestamp)
	if err != nil {
		return 0, err
	}

	var day time.Time
	if date == "" {
		now := time.Now().In(loc)
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	} else {
		day, err = parseDate(date, loc)
		if err != nil {
			return 0, err
		}
	}
	return float64(day.Unix()) + seconds, nil
}

func parseDate(date string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(date), loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", date)
}

func epochTime(epoch float64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).In(loc)
}

// EpochToTimestamp renders epoch seconds as "hh:mm:ss" in loc.
func EpochToTimestamp(epoch float64, loc *time.Location) string {
	return epochTime(epoch, loc).Format(TimestampLayout)
}

// EpochToDate renders the calendar date of epoch seconds in loc.
func EpochToDate(epoch float64, loc *time.Location) string {
	return epochTime(epoch, loc).Format(DateLayout)
}
