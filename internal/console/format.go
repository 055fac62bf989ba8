package console

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format flattens logging arguments into one line: each argument is
// stringified on its own and the results are joined with a single space.
func Format(args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = stringify(a)
	}
	return strings.Join(parts, " ")
}

// stringify renders strings verbatim, scalars, errors and Stringers through
// fmt, and structured values as JSON. A value JSON cannot represent falls
// back to its %v form.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case error, fmt.Stringer:
		return fmt.Sprint(x)
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64, complex64, complex128:
		return fmt.Sprint(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
