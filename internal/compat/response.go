package compat

import "strconv"

// IsOK reports whether a facade envelope carries status "ok".
func IsOK(resp map[string]any) bool {
	s, _ := resp["status"].(string)
	return s == "ok"
}

// ErrorMessage returns the message carried by an err envelope, or "".
func ErrorMessage(resp map[string]any) string {
	if resp == nil || IsOK(resp) {
		return ""
	}
	if s, ok := resp["response"].(string); ok {
		return s
	}
	return ""
}

// OrderIDFromResponse digs the first order id out of an order placement
// envelope, wherever the venue nested it.
func OrderIDFromResponse(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	return orderIDFromAny(resp)
}

// CloidFromResponse digs the first client order id out of an order
// placement envelope.
func CloidFromResponse(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	return cloidFromAny(resp)
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return ""
}

func orderIDFromAny(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range []string{"orderId", "orderID", "oid", "id"} {
			if id := stringFromAny(val[key]); id != "" {
				return id
			}
		}
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	case []any:
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	}
	return ""
}

func cloidFromAny(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range []string{"cloid", "externalId"} {
			if id, ok := val[key].(string); ok && id != "" {
				return id
			}
		}
		for _, nested := range val {
			if id := cloidFromAny(nested); id != "" {
				return id
			}
		}
	case []any:
		for _, nested := range val {
			if id := cloidFromAny(nested); id != "" {
				return id
			}
		}
	}
	return ""
}
