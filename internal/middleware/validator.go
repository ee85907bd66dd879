package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Input validation and sanitization utilities

var analysisIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateAnalysisID checks the ID shape before it reaches a store key.
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("analysis ID cannot be empty")
	}
	if !analysisIDPattern.MatchString(id) {
		return fmt.Errorf("invalid analysis ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateUploadName accepts only the document formats the extractor reads.
func ValidateUploadName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return fmt.Errorf("invalid characters in file name")
	}
	lower := strings.ToLower(name)
	for _, ext := range []string{".txt", ".pdf", ".docx"} {
		if strings.HasSuffix(lower, ext) {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type (allowed: txt, pdf, docx)")
}

// SanitizeString turns every whitespace rune into a plain space and drops
// the remaining control characters.
func SanitizeString(input string) string {
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			result.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination page size
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage clamps the page number to at least 1.
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
