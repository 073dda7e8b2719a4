package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TrimWindow is a resolved [Start, End) clip in seconds. A zero End means
// "until the end of the source".
type TrimWindow struct {
	Start float64
	End   float64
}

// Length returns the expected output duration for a source of the given length.
func (w TrimWindow) Length(source time.Duration) time.Duration {
	end := w.End
	if end <= 0 {
		if source <= 0 {
			return 0
		}
		end = source.Seconds()
	}
	if end <= w.Start {
		return 0
	}
	return time.Duration((end - w.Start) * float64(time.Second))
}

// ErrEmptyTrimWindow means nothing is left to encode once the trim points
// are clipped to the source.
var ErrEmptyTrimWindow = errors.New("trim window is empty")

// parseSeconds accepts plain seconds ("12.5") or a clock value
// ("1:30", "01:02:03.250"). Blank or malformed input is treated as absent
// rather than an error.
func parseSeconds(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		if len(parts) > 1 {
			last := i == len(parts)-1
			// hours and minutes are whole; minutes and seconds stay below 60
			if v < 0 || (!last && v != math.Trunc(v)) || (i > 0 && v >= 60) {
				return 0, false
			}
		}
		total = total*60 + v
	}
	return total, true
}

// ResolveTrim clamps the requested window to the source duration. Values
// past the end clip to the end; a window left empty after clipping returns
// ErrEmptyTrimWindow.
func ResolveTrim(startValue, endValue string, duration time.Duration) (TrimWindow, error) {
	var w TrimWindow
	total := duration.Seconds()

	requested, ok := parseSeconds(startValue)
	if ok && requested > 0 {
		w.Start = requested
		if total > 0 && requested > total {
			w.Start = total
		}
	}
	if end, ok := parseSeconds(endValue); ok && end > 0 {
		w.End = end
		if total > 0 && end >= total {
			// trimming at or past the end is the same as not trimming the tail
			w.End = 0
		}
	}

	if total > 0 && w.Start >= total {
		return TrimWindow{}, fmt.Errorf("%w: start %.3fs clips to the end of a %.3fs source", ErrEmptyTrimWindow, requested, total)
	}
	if w.End > 0 && w.End <= w.Start {
		return TrimWindow{}, fmt.Errorf("%w: [%.3fs, %.3fs)", ErrEmptyTrimWindow, w.Start, w.End)
	}
	return w, nil
}
