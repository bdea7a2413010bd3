package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// secondsValue is a duration flag that also takes a bare number of seconds,
// so "--delay 2" and "--delay 2s" mean the same.
type secondsValue time.Duration

func newSecondsValue(d time.Duration) *secondsValue {
	v := secondsValue(d)
	return &v
}

func (v *secondsValue) String() string {
	return time.Duration(*v).String()
}

func (v *secondsValue) Set(s string) error {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("negative duration %q", s)
		}
		*v = secondsValue(time.Duration(secs * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: use seconds (2, 0.5) or a unit (250ms)", s)
	}
	*v = secondsValue(d)
	return nil
}

// Type is reported as "duration" so flags.GetDuration reads the value.
func (v *secondsValue) Type() string {
	return "duration"
}
