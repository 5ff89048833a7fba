package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// StringField reads a string value from a decoded JSON object.
func StringField(obj map[string]any, key string) (string, error) {
	value, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("object is missing required key: '%s'", key)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("object key '%s' has an invalid type (expected string)", key)
	}
	return strValue, nil
}

// IntField reads an integer from a decoded JSON object, accepting JSON
// numbers and numeric strings.
func IntField(obj map[string]any, key string) (int, error) {
	v, ok := obj[key]
	if !ok {
		return 0, fmt.Errorf("object is missing required key: '%s'", key)
	}
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("object key '%s' invalid int: %v", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("object key '%s' has unsupported type %T", key, v)
	}
}
