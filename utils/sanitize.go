package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richText  = bluemonday.UGCPolicy()
	plainText = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks, keeping basic formatting.
func Sanitize(input string) string {
	return richText.Sanitize(input)
}

// SanitizePlain strips all markup, for titles and names.
func SanitizePlain(input string) string {
	return strings.TrimSpace(plainText.Sanitize(input))
}
