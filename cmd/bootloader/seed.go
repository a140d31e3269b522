package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/bootloader/storage"
)

// seedStore writes every top level entry of a YAML mapping into the store.
// Scalars are stored as written; mappings and lists are stored as JSON, so a
// theme can be written as a nested mapping.
func seedStore(ctx context.Context, st storage.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var entries map[string]any
	if err = yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, key := range slices.Sorted(maps.Keys(entries)) {
		value, encodeErr := seedValue(entries[key])
		if encodeErr != nil {
			return fmt.Errorf("entry %q: %w", key, encodeErr)
		}
		if err = st.Set(ctx, key, value); err != nil {
			return fmt.Errorf("write %q: %w", key, err)
		}
	}
	return nil
}

func seedValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return fmt.Sprint(val), nil
	}
}
