package listing

import (
	"regexp"
	"time"
)

// DateLayout is the day.month.year form used by the marketplace and the
// config file.
const DateLayout = "02.01.2006"

// SentinelDate stands in for a missing date. It never parses, so the field
// ends up as the zero time and fails every range check.
const SentinelDate = "00.00.0000"

var (
	dottedDate = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	isoDate    = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
)

// NormalizeDate pulls the date out of strings such as
// "Membre depuis 01.02.2015" or "01.02.2015 13:45", dropping any prefix and
// time token. ISO dates are rewritten to day.month.year. Input without a
// date yields SentinelDate.
func NormalizeDate(raw string) string {
	if m := dottedDate.FindString(raw); m != "" {
		return m
	}
	if m := isoDate.FindStringSubmatch(raw); m != nil {
		return m[3] + "." + m[2] + "." + m[1]
	}
	return SentinelDate
}

// ParseDate parses a normalized date. Unparseable input, the sentinel
// included, returns the zero time and false.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseLooseDate(raw string) time.Time {
	t, _ := ParseDate(NormalizeDate(raw))
	return t
}
