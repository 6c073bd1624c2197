package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeDateFrom canonicalizes a lower date bound. A bare YYYY-MM month
// becomes the first calendar day of that month; full dates pass through.
// Empty input returns empty, which the compiler treats as "no constraint".
func NormalizeDateFrom(date string) string {
	year, month, ok := parseBareMonth(date)
	if !ok {
		return date
	}
	return fmt.Sprintf("%04d-%02d-01", year, month)
}

// NormalizeDateTo canonicalizes an upper date bound. A bare YYYY-MM month
// becomes the last calendar day of that month, with correct month-length
// and leap-year handling.
func NormalizeDateTo(date string) string {
	year, month, ok := parseBareMonth(date)
	if !ok {
		return date
	}
	// Day zero of the following month is the last day of this month.
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return last.Format("2006-01-02")
}

// parseBareMonth reports whether date is a bare YYYY-MM month.
func parseBareMonth(date string) (year, month int, ok bool) {
	parts := strings.Split(date, "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return 0, 0, false
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}
