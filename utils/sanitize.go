package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer     = bluemonday.UGCPolicy()
	textSanitizer = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// SanitizeText strips all markup and returns plain text. Entities escaped by
// the policy are decoded again, so "Tom & Jerry's" survives unchanged and
// renderers must escape it.
func SanitizeText(input string) string {
	return html.UnescapeString(textSanitizer.Sanitize(input))
}
