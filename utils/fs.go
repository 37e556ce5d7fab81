package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileOperations provides file system utilities
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// EnsureDir creates the parent directory of path if it doesn't exist
func (f *FileOperations) EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// FileExists checks if a file exists
func (f *FileOperations) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file
func (f *FileOperations) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicRename performs an atomic file rename operation
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// DetectPartialDownload checks if a partial download exists and returns its size
func (f *FileOperations) DetectPartialDownload(outputPath string) (bool, int64, error) {
	partPath := outputPath + ".part"

	info, err := os.Stat(partPath)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	return true, info.Size(), nil
}

// ValidatePartialFile checks if a partial file is valid for resuming
func (f *FileOperations) ValidatePartialFile(partPath string, expectedSize int64) error {
	info, err := os.Stat(partPath)
	if err != nil {
		return err
	}

	if expectedSize > 0 && info.Size() > expectedSize {
		return fmt.Errorf("partial file size (%d) exceeds expected size (%d)", info.Size(), expectedSize)
	}

	file, err := os.OpenFile(partPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("cannot access partial file: %w", err)
	}
	file.Close()

	return nil
}

// SanitizeFilename strips path separators and control characters so a
// hoster-supplied filename cannot escape the output directory.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '\\' || r == 0x7f {
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}

// UniqueOutputPath returns path unchanged if nothing exists there, otherwise
// appends .1, .2, ... before the extension until a free name is found.
func UniqueOutputPath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
