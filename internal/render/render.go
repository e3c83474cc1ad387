// Package render shapes narrative text into the blocks the front end draws.
package render

import (
	"strings"

	"github.com/tatianab/prairie/internal/interpreter"
)

// RestartPrompt follows every concluded story.
const RestartPrompt = `Type /reset to whisper to the wind and begin a new journey`

// Paragraphs splits text on blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// Conclusion is a concluded narrative split around the end marker.
type Conclusion struct {
	Main      []string
	Epilogue  []string
	HasMarker bool
}

// SplitConclusion separates the text before the first end marker from the
// epilogue after it.
func SplitConclusion(text string) Conclusion {
	before, after, found := strings.Cut(text, interpreter.EndMarker)
	if !found {
		return Conclusion{Main: Paragraphs(text)}
	}
	return Conclusion{
		Main:      Paragraphs(before),
		Epilogue:  Paragraphs(after),
		HasMarker: true,
	}
}
