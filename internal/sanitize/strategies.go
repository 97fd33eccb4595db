package sanitize

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	errInvalidJSON = errors.New("not a JSON object")
	errNoFence     = errors.New("no fenced code block")
	errNoBraces    = errors.New("no {...} span")
)

// Strategy turns raw model output into a candidate JSON object, or fails.
type Strategy struct {
	Name  string
	Apply func(text string) (string, error)
}

// Chain is the ordered fallback pipeline. Each strategy only runs when every
// earlier one failed.
var Chain = []Strategy{
	{Name: "direct", Apply: Direct},
	{Name: "fenced", Apply: Fenced},
	{Name: "braces", Apply: Braces},
	{Name: "trailing_commas", Apply: TrailingCommas},
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

// Direct strips comments and parses the whole text.
func Direct(text string) (string, error) {
	return asObject(stripComments(text))
}

// Fenced parses the first ```json ... ``` block.
func Fenced(text string) (string, error) {
	block, ok := fencedBlock(text)
	if !ok {
		return "", errNoFence
	}
	return asObject(stripComments(block))
}

// Braces parses the span between the first '{' and the last '}'.
func Braces(text string) (string, error) {
	span, ok := braceSpan(text)
	if !ok {
		return "", errNoBraces
	}
	return asObject(stripComments(span))
}

// TrailingCommas removes commas that directly precede '}' or ']' in the best
// available candidate and parses the result.
func TrailingCommas(text string) (string, error) {
	candidate := text
	if block, ok := fencedBlock(text); ok {
		candidate = block
	} else if span, ok := braceSpan(text); ok {
		candidate = span
	}
	cleaned := removeTrailingCommas(stripComments(candidate))
	if span, ok := braceSpan(cleaned); ok {
		cleaned = span
	}
	return asObject(cleaned)
}

func asObject(candidate string) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if !gjson.Valid(candidate) || !gjson.Parse(candidate).IsObject() {
		return "", errInvalidJSON
	}
	return candidate, nil
}

func fencedBlock(text string) (string, bool) {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// stripComments drops // line comments and /* */ block comments that sit
// outside JSON strings, so URLs inside values survive.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}

		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					i = len(s)
					continue
				}
				i += end + 3
				continue
			}
		}

		b.WriteByte(c)
	}
	return b.String()
}

// removeTrailingCommas drops a comma when the next non-space byte outside a
// string closes an object or array.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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

		if c == '"' {
			inString = true
		}

		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}

		b.WriteByte(c)
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
