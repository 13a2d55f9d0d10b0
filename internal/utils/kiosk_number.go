package utils

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeKioskNumber trims whitespace and strips a trailing ".0" left by
// spreadsheet exports, so "1042.0" and "1042" name the same kiosk.
func NormalizeKioskNumber(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, ".0")
}

// KioskNumberFromFloat renders a numeric kiosk number as an integer string.
func KioskNumberFromFloat(f float64) string {
	return strconv.FormatFloat(math.Floor(f), 'f', -1, 64)
}
