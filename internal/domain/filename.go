package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxFilenameLength bounds sanitized names, counted in characters.
const MaxFilenameLength = 200

// FallbackFilename is used when nothing survives sanitization.
const FallbackFilename = "video"

var (
	forbiddenFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun          = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns a media title into a name that is safe on every
// common filesystem, Windows included.
func SanitizeFilename(title string) string {
	name := strings.ToValidUTF8(title, "")
	name = forbiddenFilenameChars.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = strings.Trim(name, ". ")

	if utf8.RuneCountInString(name) > MaxFilenameLength {
		name = string([]rune(name)[:MaxFilenameLength])
	}

	if name == "" {
		return FallbackFilename
	}
	return name
}
