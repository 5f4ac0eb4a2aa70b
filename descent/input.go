package descent

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses user input as a float. Anything that is not a finite
// number becomes 0.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseDataset reads points written as "x:y" separated by commas or whitespace,
// e.g. "1:2, 2:4.1". Coordinates that do not parse become 0 and a point
// without a colon gets y = 0.
func ParseDataset(s string) Dataset {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	var d Dataset
	for _, f := range fields {
		xs, ys, _ := strings.Cut(f, ":")
		d = append(d, Point{X: ParseNumber(xs), Y: ParseNumber(ys)})
	}
	return d
}
