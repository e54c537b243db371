package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// extendedUnits are the units added on top of time.ParseDuration.
var extendedUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// parseDurationExtended parses Go duration strings plus d (24h) and w (7d)
// units, e.g. "7d", "1w2d3h", "1.5d", "-2w".
func parseDurationExtended(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	sign := time.Duration(1)
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}

	var total time.Duration
	for s != "" {
		n := strings.IndexFunc(s, func(r rune) bool { return !isNumberRune(r) })
		if n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		number := s[:n]
		s = s[n:]
		u := strings.IndexFunc(s, isNumberRune)
		if u < 0 {
			u = len(s)
		}
		unit := s[:u]
		s = s[u:]

		if scale, ok := extendedUnits[unit]; ok {
			value, err := strconv.ParseFloat(number, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			total += time.Duration(value * float64(scale))
			continue
		}
		part, err := time.ParseDuration(number + unit)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		total += part
	}
	return sign * total, nil
}

func isNumberRune(r rune) bool {
	return r == '.' || (r >= '0' && r <= '9')
}

// Duration accepts the extended syntax above in YAML and environment values.
// A bare number is read as minutes.
type Duration time.Duration

func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && strings.Trim(raw, "0123456789.") == "" {
		minutes, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(minutes * float64(time.Minute)), nil
	}
	return parseDurationExtended(raw)
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
