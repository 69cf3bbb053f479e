package model

import (
	"math"

	benchErrors "github.com/YuminosukeSato/modelbench/pkg/errors"
)

// ParamFloat coerces a SetParams value to float64. Integers are accepted so
// sweeps can list values like 100 or 1e-3 interchangeably.
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, benchErrors.NewValidationError(name, "must be a number", v)
	}
}

// ParamInt coerces a SetParams value to int. Floats must be integral.
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, benchErrors.NewValidationError(name, "must be an integer", v)
		}
		return int(x), nil
	default:
		return 0, benchErrors.NewValidationError(name, "must be an integer", v)
	}
}

// ParamSeed coerces a SetParams value to a uint64 random seed.
func ParamSeed(name string, v interface{}) (uint64, error) {
	n, err := ParamInt(name, v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, benchErrors.NewValidationError(name, "must be non-negative", v)
	}
	return uint64(n), nil
}

// ParamBool coerces a SetParams value to bool.
func ParamBool(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, benchErrors.NewValidationError(name, "must be a bool", v)
	}
	return b, nil
}

// ParamString coerces a SetParams value to string.
func ParamString(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", benchErrors.NewValidationError(name, "must be a string", v)
	}
	return s, nil
}

// UnknownParam is returned by SetParams for keys the estimator does not have.
func UnknownParam(modelName, key string) error {
	return benchErrors.NewValidationError(key, "unknown parameter for "+modelName, nil)
}
