package marshal

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	dateLayout,
	time.RFC1123Z,
	time.RFC1123,
}

// fractionRE splits a fractional-second suffix off the clock portion.
var fractionRE = regexp.MustCompile(`^(.*\d{2}:\d{2}:\d{2})\.(\d+)(.*)$`)

// parseDateTime parses a date or date-time string in UTC. A fractional
// seconds suffix is taken off before layout matching and re-applied with
// microsecond precision.
func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	base, micros := s, 0

	if m := fractionRE.FindStringSubmatch(s); m != nil {
		base = m[1] + m[3]
		digits := m[2]
		if len(digits) > 6 {
			digits = digits[:6]
		}
		digits += strings.Repeat("0", 6-len(digits))
		micros, _ = strconv.Atoi(digits)
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, base); err == nil {
			return t.Add(time.Duration(micros) * time.Microsecond).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date/time %q", s)
}

// parseTimeOfDay parses HH:MM[:SS[.nnnnnnnnn]].
func parseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("expected HH:MM:SS")
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute %q", parts[1])
	}

	var sec, nanos int
	if len(parts) == 3 {
		whole, frac, _ := strings.Cut(parts[2], ".")
		sec, err = strconv.Atoi(whole)
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second %q", whole)
		}
		if frac != "" {
			if len(frac) > 9 {
				return 0, fmt.Errorf("fraction %q exceeds nanosecond precision", frac)
			}
			nanos, err = strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
			if err != nil {
				return 0, fmt.Errorf("invalid fraction %q", frac)
			}
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(nanos), nil
}

// fromEpochSeconds converts (possibly fractional) epoch seconds, keeping
// microsecond precision.
func fromEpochSeconds(secs float64) time.Time {
	whole := math.Floor(secs)
	micros := math.Round((secs - whole) * 1e6)
	return time.Unix(int64(whole), int64(micros)*int64(time.Microsecond)).UTC()
}

// formatTimestamp renders t with millisecond accuracy. The layout drops
// sub-second digits, so the milliseconds are spliced back in.
func formatTimestamp(t time.Time) string {
	t = t.UTC()
	return t.Format(timestampLayout) + fmt.Sprintf(".%03d", t.Nanosecond()/int(time.Millisecond))
}

// formatTimeOfDay renders d as HH:MM:SS.nnnnnnnnn.
func formatTimeOfDay(d time.Duration) string {
	secs := int64(d / time.Second)
	nanos := int64(d % time.Second)
	return fmt.Sprintf("%02d:%02d:%02d.%09d", secs/3600, (secs/60)%60, secs%60, nanos)
}
