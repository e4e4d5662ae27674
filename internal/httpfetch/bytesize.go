package httpfetch

import (
	"fmt"
	"math"
)

var byteSizeUnits = [...]string{"B", "kiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatByteSize renders n using binary units (kiB not KiB — see
// https://en.wikipedia.org/wiki/Metric_prefix#List_of_SI_prefixes), matching
// the user-facing TooLarge error string in §7.
func FormatByteSize(n uint64) string {
	if n == 0 {
		return "0B"
	}
	bytes := float64(n)
	i := int(math.Floor(math.Log(bytes) / math.Log(1024)))
	if i >= len(byteSizeUnits) {
		i = len(byteSizeUnits) - 1
	}
	divisor := math.Pow(1024, float64(i))
	return fmt.Sprintf("%.0f%s", bytes/divisor, byteSizeUnits[i])
}
