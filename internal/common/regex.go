package common

import (
	"path/filepath"
	"regexp"
)

var imageExtPattern = regexp.MustCompile(`(?i)^\.(png|jpe?g|gif|bmp|tiff?|webp)$`)

// IsImagePath reports whether path has an extension of a decodable image format.
func IsImagePath(path string) bool {
	return imageExtPattern.MatchString(filepath.Ext(path))
}
