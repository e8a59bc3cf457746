package common

import (
	"fmt"
	"math"
)

// IntArg reads a whole-number argument. JSON numbers arrive as float64.
// A missing argument yields def; the result is checked against [lo, hi].
func IntArg(args map[string]any, name string, def, lo, hi int) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return def, nil
	}

	var n int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be a whole number", name)
		}
		n = int(v)
	case int:
		n = v
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}

	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return n, nil
}
