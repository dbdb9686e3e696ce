package dispatcher

import (
	"encoding/json"
	"fmt"
)

// parseParams decodes a raw tool-argument map into a typed parameter
// struct via a marshal/unmarshal round trip.
func parseParams(params map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("invalid tool parameters: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid tool parameters: %w", err)
	}
	return nil
}

func stringPtr(params map[string]interface{}, key string) *string {
	v, ok := params[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
