package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitExport, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

func readJSONFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read %s: %w", path, err))
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return withCode(exitValidation, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
