package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
)

// decodeInput converts a task input into the handler's typed input struct.
// HTTP callers submit raw JSON; in-process callers may pass the struct or a
// map directly, which is round-tripped through JSON.
func decodeInput(input any, dst any) error {
	switch v := input.(type) {
	case nil:
		return errors.New("input is required")
	case json.RawMessage:
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("malformed input: %w", err)
		}
		return nil
	case []byte:
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("malformed input: %w", err)
		}
		return nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("unsupported input type %T: %w", input, err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("malformed input: %w", err)
		}
		return nil
	}
}
