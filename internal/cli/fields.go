package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
)

// fieldFlags are the --set and --file flags shared by commands that take tab fields.
type fieldFlags struct {
	sets []string
	file string
}

// collect merges the JSON object in --file with --set assignments. --set
// wins on conflicts. A value of "null" stores an explicit NULL.
func (f fieldFlags) collect() (map[string]any, error) {
	fields := make(map[string]any)
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read fields file: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, &apperrors.ValidationError{Field: "file", Reason: "must contain a JSON object: " + err.Error()}
		}
	}

	for _, assignment := range f.sets {
		key, value, ok := strings.Cut(assignment, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &apperrors.ValidationError{Field: "set", Reason: fmt.Sprintf("expected key=value, got %q", assignment)}
		}
		if strings.EqualFold(strings.TrimSpace(value), "null") {
			fields[key] = nil
			continue
		}
		fields[key] = value
	}
	return fields, nil
}
