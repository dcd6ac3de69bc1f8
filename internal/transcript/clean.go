// Package transcript normalizes recognized text before injection.
package transcript

import "strings"

// Clean collapses whitespace runs and trims the edges. Whisper output
// often carries a leading space and stray newlines; injected text should
// be a single clean line.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
