// Package bytesize parses human-readable byte-size strings ("500MB",
// "2GiB") into an exact byte count, for use in guardrail configuration.
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var units = map[string]uint64{
	"":    1,
	"B":   1,
	"KB":  1_000,
	"MB":  1_000_000,
	"GB":  1_000_000_000,
	"TB":  1_000_000_000_000,
	"KIB": 1_024,
	"MIB": 1_048_576,
	"GIB": 1_073_741_824,
	"TIB": 1_099_511_627_776,
}

// Parse converts a byte-size string such as "500MB" or "2GiB" into its
// exact byte count. Unit suffixes are case-insensitive; SI units (KB, MB,
// GB, TB) are decimal, IEC units (KiB, MiB, GiB, TiB) are binary.
func Parse(input string) (uint64, error) {
	var b strings.Builder
	for _, r := range input {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	compact := b.String()
	if compact == "" {
		return 0, fmt.Errorf("size must not be empty")
	}

	splitIndex := len(compact)
	for i, r := range compact {
		if r < '0' || r > '9' {
			splitIndex = i
			break
		}
	}

	valueText := compact[:splitIndex]
	unitText := strings.ToUpper(compact[splitIndex:])

	if valueText == "" {
		return 0, fmt.Errorf("size is missing numeric value")
	}

	value, err := strconv.ParseUint(valueText, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric size value: %s (%w)", valueText, err)
	}

	multiplier, ok := units[unitText]
	if !ok {
		return 0, fmt.Errorf("unsupported byte size unit: %s", unitText)
	}

	if multiplier != 0 && value > math.MaxUint64/multiplier {
		return 0, fmt.Errorf("byte size is too large")
	}

	return value * multiplier, nil
}
