package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//StampLayout formats upload and artifact timestamps, e.g. 20240102_150405
const StampLayout = "20060102_150405"

//ListDir returns a list of files/ directories in given path. Hidden entries (in-flight uploads) are skipped.
func ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("ListDir: Error, got '%v'", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}

	return names, nil
}

//EnsureDirs creates every missing directory in dirs
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("EnsureDirs: Error checking '%s', got '%v'", dir, err)
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("EnsureDirs: Error creating '%s' directory, got '%v'", dir, err)
			}
		}
	}

	return nil
}

//StampedName prefixes the base name of name with the timestamp t, e.g. 20240102_150405_match.mp4
func StampedName(t time.Time, name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return t.Format(StampLayout) + "_" + base
}
