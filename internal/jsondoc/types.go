package jsondoc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type names reported by TypeOf.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNull    = "object-null"
	TypeObject  = "object"
	TypeArray   = "array"
)

// TypeOf names the runtime type of a decoded value.
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case float64, float32, int, int64, int32, json.Number:
		return TypeNumber
	case []any:
		return TypeArray
	}
	if IsObject(v) {
		return TypeObject
	}
	return fmt.Sprintf("%T", v)
}

// Sample renders a value for display next to a discovered field.
func Sample(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		return val.String()
	case []any, *Object, map[string]any:
		b, err := json.Marshal(Plain(val))
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
