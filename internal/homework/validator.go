package homework

import (
	"fmt"
	"math"

	json "github.com/goccy/go-json"
)

const (
	fieldHomeworks   = "homeworks"
	fieldCurrentDate = "current_date"
)

// Response is a validated API payload.
//
// Homeworks holds the raw submission mappings in API order (newest first).
// CurrentDate is 0 when the API omitted it or sent a non-integer.
type Response struct {
	Homeworks   []any
	CurrentDate int64
}

// Validate checks the decoded payload has the expected shape.
func Validate(v any) (Response, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Response{}, newError(KindShape, "response is not a mapping", nil)
	}

	raw, ok := obj[fieldHomeworks]
	if !ok {
		return Response{}, &Error{
			Kind:  KindMissingField,
			Msg:   fmt.Sprintf("response has no %q field", fieldHomeworks),
			Field: fieldHomeworks,
		}
	}
	list, ok := raw.([]any)
	if !ok {
		return Response{}, newError(KindShape, fmt.Sprintf("%q is not a list", fieldHomeworks), nil)
	}

	cur, _ := asInt64(obj[fieldCurrentDate])
	return Response{Homeworks: list, CurrentDate: cur}, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
