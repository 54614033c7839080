package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// thumbnailSources are the extensions the CLI will pick up when walking a directory
var thumbnailSources = []string{"jpg", "jpeg", "jpe", "jfif", "png", "gif", "bmp", "tif", "tiff", "webp"}

// GetFileExtension returns the lower-cased file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an extension we can thumbnail
func IsImageFile(filename string) bool {
	return slices.Contains(thumbnailSources, GetFileExtension(filename))
}

// ThumbnailPath builds <dir>/<prefix><name>_<style>.<ext> for a source file.
// An empty ext keeps the source extension.
func ThumbnailPath(source, outputDir, prefix, style, ext string) string {
	base := filepath.Base(source)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	if ext == "" {
		ext = GetFileExtension(source)
		if ext == "" {
			ext = "jpg"
		}
	}

	out := prefix + name
	if style != "" {
		out += "_" + SanitizeFilename(style)
	}
	return filepath.Join(outputDir, fmt.Sprintf("%s.%s", out, ext))
}

// ListImageFiles recursively lists all thumbnail sources in a directory
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SanitizeFilename replaces characters that are unsafe in file names
func SanitizeFilename(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return strings.Trim(r.Replace(name), " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
