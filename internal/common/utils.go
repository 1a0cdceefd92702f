package common

import (
	"math"
	"strconv"
)

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Display formats a fractional request budget for logs and messages.
// Values are rounded to one decimal; computations never use the result.
func Display(v float64) string {
	return strconv.FormatFloat(Round(v, 1), 'f', -1, 64)
}
