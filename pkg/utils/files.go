package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// ReadFileLimit reads a file that must not exceed limit bytes.
func ReadFileLimit(path string, limit int) ([]byte, error) {
	fullPath, _, err := GetPathInfo(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", fullPath)
	}
	if limit > 0 && info.Size() > int64(limit) {
		return nil, fmt.Errorf("%s: %d bytes > %d bytes", fullPath, info.Size(), limit)
	}

	return os.ReadFile(fullPath)
}
