package textutil

import "strings"

// maxTitleRunes bounds the title portion of an export filename.
const maxTitleRunes = 100

// titleReplacer maps each filesystem-unsafe character to an underscore.
var titleReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	"\"", "_",
	"/", "_",
	"\\", "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// SanitizeTitle converts a meeting title into a filename segment. Every unsafe
// character is replaced independently, the result is cut to 100 characters,
// and spaces become underscores.
func SanitizeTitle(title string) string {
	cleaned := Truncate(titleReplacer.Replace(title), maxTitleRunes)
	return strings.ReplaceAll(cleaned, " ", "_")
}

// Truncate returns at most n runes of value.
func Truncate(value string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range value {
		if count == n {
			return value[:i]
		}
		count++
	}
	return value
}

// Ellipsize shortens value to n runes, ending with an ellipsis when cut.
func Ellipsize(value string, n int) string {
	if n <= 1 || Truncate(value, n) == value {
		return Truncate(value, n)
	}
	return Truncate(value, n-1) + "…"
}
