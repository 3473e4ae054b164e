package fileutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	illegalChars = regexp.MustCompile(`[\/\\:*?"<>|]`)
	whitespace   = regexp.MustCompile(`[\s_]+`)
)

// SanitizeForFilename sanitizes a string for safe use in filenames
func SanitizeForFilename(input string) string {
	// Illegal chars: / \ : * ? " < > |
	sanitized := illegalChars.ReplaceAllString(input, "_")
	sanitized = whitespace.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")

	if len(sanitized) > 50 {
		sanitized = strings.TrimRight(sanitized[:50], "-")
	}

	if sanitized == "" {
		return "Dictation"
	}
	return sanitized
}

// SessionBasename builds the export name for a dictation session.
// Format: YYYY-MM-DD_HHMMSS_Label
func SessionBasename(startedAt time.Time, label string) string {
	return startedAt.Format("2006-01-02_150405") + "_" + SanitizeForFilename(label)
}

// UniqueBase returns dir/base, or dir/base_N when a file with that base and
// any of exts already exists.
func UniqueBase(dir, base string, exts []string) string {
	candidate := filepath.Join(dir, base)
	for i := 2; taken(candidate, exts) && i < 100; i++ {
		candidate = filepath.Join(dir, base+"_"+strconv.Itoa(i))
	}
	return candidate
}

func taken(base string, exts []string) bool {
	for _, ext := range exts {
		if _, err := os.Stat(base + ext); err == nil {
			return true
		}
	}
	return false
}
