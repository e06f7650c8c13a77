package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Archive writes an upload to dir as "<id>_<base name>" and returns the path.
func Archive(dir, id, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	path := filepath.Join(dir, id+"_"+name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("archive upload: %w", err)
	}
	return path, nil
}
