package agent

import (
	"regexp"
	"strings"
)

// fencePattern matches fenced code blocks with or without a language tag.
var fencePattern = regexp.MustCompile("(?s)```[\\w+-]*[ \\t]*\\r?\\n?(.*?)```")

// candidateStrategies extract JSON candidates from free-form text, loosest last.
var candidateStrategies = []func(string) []string{
	fencedBlocks,
	findingsObject,
	outerBraces,
	wholeText,
}

// Candidates returns every JSON candidate in the order the strategies produce
// them. Callers take the first candidate that validates.
func Candidates(text string) []string {
	var out []string
	for _, strategy := range candidateStrategies {
		out = append(out, strategy(text)...)
	}
	return out
}

// fencedBlocks returns the body of every fenced code block, in order.
func fencedBlocks(text string) []string {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

// findingsObject returns the balanced object that opens at the nearest '{'
// before the first "findings" key.
func findingsObject(text string) []string {
	key := strings.Index(text, `"findings"`)
	if key < 0 {
		return nil
	}
	start := strings.LastIndex(text[:key], "{")
	if start < 0 {
		return nil
	}
	end := matchingBrace(text, start)
	if end < 0 {
		return nil
	}
	return []string{text[start : end+1]}
}

// matchingBrace returns the index of the '}' closing the '{' at start, or -1.
// Braces inside JSON strings are ignored.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// outerBraces returns the text from the first '{' to the last '}'.
func outerBraces(text string) []string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	return []string{text[start : end+1]}
}

// wholeText returns the trimmed text itself.
func wholeText(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return []string{trimmed}
}
