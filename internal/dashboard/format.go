package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatNumber abbreviates millions and thousands to one decimal place.
func FormatNumber(n float64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(n/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(n/1_000, 'f', 1, 64) + "K"
	default:
		return humanize.Commaf(n)
	}
}

func FormatCurrency(amount float64) string {
	if amount == 0 || math.IsNaN(amount) {
		return "$0.0000"
	}
	return fmt.Sprintf("$%.4f", amount)
}

// truncate2 drops everything past the second decimal place of the shortest
// decimal form, so 0.29 stays 0.29.
func truncate2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s) > dot+3 {
		s = s[:dot+3]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
