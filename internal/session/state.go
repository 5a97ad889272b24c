package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveAtomic writes v as JSON to path via temp-file-then-rename, so a
// crash mid-write leaves any prior file intact: the temp file may
// dangle, but it never replaces the real path until the rename.
func SaveAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal state: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("session: mkdir %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session: rename %s: %w", tmp, err)
	}
	return nil
}

// LoadJSON reads path into v. A read error, including a missing file,
// is returned unwrapped, so os.IsNotExist reports a missing file.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("session: parse %s: %w", path, err)
	}
	return nil
}
