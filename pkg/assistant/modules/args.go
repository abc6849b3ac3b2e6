package modules

import (
	"fmt"
	"strconv"
)

// stringArg returns a string argument or "" when absent.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// floatArg returns a required numeric argument. Models sometimes send
// numbers as strings; both are accepted.
func floatArg(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q is not a number: %q", key, v)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing required argument %q", key)
	default:
		return 0, fmt.Errorf("argument %q has unexpected type %T", key, v)
	}
}

// intArg returns a required integer argument.
func intArg(args map[string]any, key string) (int, error) {
	f, err := floatArg(args, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
