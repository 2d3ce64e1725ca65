package domain

import (
	"fmt"
	"time"
)

// UnixTime is a timestamp with second precision.
type UnixTime int64

// TimeUnit is a calendar unit timestamps can be aligned to.
type TimeUnit string

const (
	Hour TimeUnit = "hour"
	Day  TimeUnit = "day"
)

const (
	secondsPerHour = 3600
	secondsPerDay  = 24 * secondsPerHour
)

// Now returns the current time.
func Now() UnixTime {
	return FromTime(time.Now())
}

// FromTime converts t, truncating sub-second precision.
func FromTime(t time.Time) UnixTime {
	return UnixTime(t.Unix())
}

// FromDay returns the start of the day with the given index since the epoch.
func FromDay(day uint64) UnixTime {
	return UnixTime(day * secondsPerDay)
}

// Time converts to a UTC time.Time.
func (t UnixTime) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// ToStartOf aligns the timestamp down to the given unit.
func (t UnixTime) ToStartOf(unit TimeUnit) UnixTime {
	switch unit {
	case Hour:
		return t - mod(t, secondsPerHour)
	case Day:
		return t - mod(t, secondsPerDay)
	}
	panic(fmt.Sprintf("unknown time unit %q", unit))
}

// IsFull reports whether the timestamp is aligned to unit.
func (t UnixTime) IsFull(unit TimeUnit) bool {
	return t.ToStartOf(unit) == t
}

// Add returns t shifted by d.
func (t UnixTime) Add(d time.Duration) UnixTime {
	return t + UnixTime(d/time.Second)
}

// Day returns the day index since the epoch.
func (t UnixTime) Day() uint64 {
	if t < 0 {
		return 0
	}
	return uint64(t / secondsPerDay)
}

// Before reports whether t is strictly earlier than other.
func (t UnixTime) Before(other UnixTime) bool {
	return t < other
}

func (t UnixTime) String() string {
	return t.Time().Format(time.RFC3339)
}

func mod(t UnixTime, n int64) UnixTime {
	m := int64(t) % n
	if m < 0 {
		m += n
	}
	return UnixTime(m)
}
