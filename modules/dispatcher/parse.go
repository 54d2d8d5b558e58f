package dispatcher

import "strconv"

// parseFloat reports whether raw parses as a number, for watch samples
// whose wire value is always a string.
func parseFloat(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
