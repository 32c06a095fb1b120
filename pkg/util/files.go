package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TempFile creates a temporary file with a specific extension
func TempFile(dir, pattern, ext string) (*os.File, error) {
	if dir != "" {
		if err := EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	return os.CreateTemp(dir, pattern+"*"+ext)
}

// CleanupFiles removes multiple files, ignoring errors
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}

// GenerateFilename builds "<prefix>-YYYYMMDD-HHMMSS.<ext>" inside dir
func GenerateFilename(dir, prefix, ext string, now time.Time) string {
	name := fmt.Sprintf("%s-%s.%s", prefix, now.Format("20060102-150405"), ext)
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
