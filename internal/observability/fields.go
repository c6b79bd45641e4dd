package observability

import (
	"time"

	"go.uber.org/zap"
)

// Field aliases the zap field type so call sites outside this package do not
// import zap directly.
type Field = zap.Field

// String constructs a string log field.
func String(key, value string) Field {
	return zap.String(key, value)
}

// Int constructs an int log field.
func Int(key string, value int) Field {
	return zap.Int(key, value)
}

// Float64 constructs a float64 log field.
func Float64(key string, value float64) Field {
	return zap.Float64(key, value)
}

// Bool constructs a bool log field.
func Bool(key string, value bool) Field {
	return zap.Bool(key, value)
}

// Duration constructs a duration log field.
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

// Error constructs an error log field.
func Error(err error) Field {
	return zap.Error(err)
}
