// Package window evaluates daily time-of-day transfer windows.
//
// A TimeWindow is a pure predicate over wall-clock time. It keeps no
// "started" or "stopped" latch, so it cannot drift from the real clock
// across process suspensions and may be polled as often as needed.
package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Clock is an hour and minute of the day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	c := Clock{Hour: hour, Minute: minute}
	if err := c.validate(); err != nil {
		return Clock{}, err
	}
	return c, nil
}

func (c Clock) validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("hour %d out of range 0-23", c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("minute %d out of range 0-59", c.Minute)
	}
	return nil
}

// TimeWindow is an immutable daily interval, inclusive at both ends, with
// minute resolution. A window whose end is before its start crosses midnight.
type TimeWindow struct {
	start           Clock
	end             Clock
	crossesMidnight bool
}

// New builds a window from start and end hours and minutes.
func New(startHour, startMin, endHour, endMin int) (TimeWindow, error) {
	start := Clock{Hour: startHour, Minute: startMin}
	end := Clock{Hour: endHour, Minute: endMin}
	if err := start.validate(); err != nil {
		return TimeWindow{}, fmt.Errorf("window start: %w", err)
	}
	if err := end.validate(); err != nil {
		return TimeWindow{}, fmt.Errorf("window end: %w", err)
	}
	return TimeWindow{
		start:           start,
		end:             end,
		crossesMidnight: end.minutes() < start.minutes(),
	}, nil
}

// Parse builds a window from two "HH:MM" strings.
func Parse(start, end string) (TimeWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("window end: %w", err)
	}
	return New(s.Hour, s.Minute, e.Hour, e.Minute)
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(start, end string) TimeWindow {
	w, err := Parse(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

// Always is the whole day.
func Always() TimeWindow {
	return TimeWindow{start: Clock{0, 0}, end: Clock{23, 59}}
}

func (w TimeWindow) Start() Clock { return w.start }

func (w TimeWindow) End() Clock { return w.end }

func (w TimeWindow) CrossesMidnight() bool { return w.crossesMidnight }

// Inside reports whether now, in its own location, falls inside the window.
func (w TimeWindow) Inside(now time.Time) bool {
	m := (now.Hour()*60 + now.Minute()) % minutesPerDay
	if w.crossesMidnight {
		return m >= w.start.minutes() || m <= w.end.minutes()
	}
	return w.start.minutes() <= m && m <= w.end.minutes()
}

func (w TimeWindow) String() string {
	return w.start.String() + "-" + w.end.String()
}
