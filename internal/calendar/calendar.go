package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/christopherklint97/travelpal/internal/trip"
)

// DefaultDuration is used when an event has no usable end time.
const DefaultDuration = 90 * time.Minute

// Options controls how event times are placed on the calendar.
type Options struct {
	// Location the event times are interpreted in. Nil means UTC.
	Location        *time.Location
	DefaultDuration time.Duration
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) duration() time.Duration {
	if o.DefaultDuration <= 0 {
		return DefaultDuration
	}
	return o.DefaultDuration
}

// ParseClock reads a time of day such as "09:00", "9:30 PM", "9 AM" or
// "12:15am" and returns the hour and minute on a 24h clock.
func ParseClock(s string) (hour, minute int, err error) {
	raw := s
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")

	meridiem := ""
	for _, m := range []string{"AM", "PM"} {
		if strings.HasSuffix(s, m) {
			meridiem = m
			s = strings.TrimSpace(strings.TrimSuffix(s, m))
			break
		}
	}

	hStr, mStr, hasMinutes := strings.Cut(s, ":")
	hour, err = strconv.Atoi(hStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q", raw)
	}
	if hasMinutes {
		if len(mStr) != 2 {
			return 0, 0, fmt.Errorf("invalid time %q", raw)
		}
		minute, err = strconv.Atoi(mStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid time %q", raw)
		}
	} else if meridiem == "" {
		return 0, 0, fmt.Errorf("invalid time %q", raw)
	}

	switch meridiem {
	case "AM", "PM":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("invalid time %q", raw)
		}
		if meridiem == "PM" && hour < 12 {
			hour += 12
		}
		if meridiem == "AM" && hour == 12 {
			hour = 0
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q", raw)
	}
	return hour, minute, nil
}

// EventWindow returns the start and end of an event on the given date. The
// end is the event's own end time when it parses and falls after the start.
func EventWindow(e trip.ItineraryEvent, date string, opts Options) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(trip.DateLayout, strings.TrimSpace(date), opts.location())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing date %q: %w", date, err)
	}
	h, m, err := ParseClock(e.Time)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, opts.location())
	end := start.Add(opts.duration())

	if e.EndTime != "" {
		if eh, em, err := ParseClock(e.EndTime); err == nil {
			explicit := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, opts.location())
			if explicit.After(start) {
				end = explicit
			}
		}
	}
	return start, end, nil
}

func location(e trip.ItineraryEvent) string {
	if strings.TrimSpace(e.Address) != "" {
		return e.Address
	}
	return e.LocationName
}
