package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

var stdout io.Writer = os.Stdout

func writeJSONLine(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}
