package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/relayout/internal/ir"
)

// marshalOptions converts run options to canonical JSON TEXT.
func marshalOptions(opts map[string]any) (string, error) {
	if len(opts) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(opts)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(data), nil
}

// unmarshalOptions parses stored options. Integers come back as int64
// rather than float64.
func unmarshalOptions(data string) (map[string]any, error) {
	out := map[string]any{}
	if data == "" || data == "{}" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	for k, v := range out {
		if n, ok := v.(json.Number); ok {
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("unmarshal options: %s: %w", k, err)
			}
			out[k] = i
		}
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
