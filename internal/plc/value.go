package plc

import (
	"encoding/json"
	"fmt"
)

// asFloat accepts the numeric shapes that arrive from JSON and config decoding.
func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot write %T as REAL", v)
	}
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case float32:
		return x != 0, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	default:
		return false, fmt.Errorf("cannot write %T as BOOL", v)
	}
}

func asFloatLoose(v any) float64 {
	f, _ := asFloat(v)
	return f
}

func asBoolLoose(v any) bool {
	b, _ := asBool(v)
	return b
}
