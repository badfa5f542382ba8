// Package glob matches entity ids against shell-style patterns with fnmatch
// semantics: '*' matches any run of characters (including '/'), '?' one
// character, '[abc]' and '[a-z]' a class, '[!abc]' a negated class. A '['
// without a closing ']' and every other character, '\' and '^' included,
// match literally. Matching is case-sensitive.
package glob

import (
	"regexp"
	"strings"
)

// translate converts pattern to an anchored regular expression.
func translate(pattern string) string {
	var b strings.Builder
	b.WriteString(`^(?s:`)
	for i := 0; i < len(pattern); {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(`.*`)
			for i < len(pattern) && pattern[i] == '*' {
				i++
			}
		case '?':
			b.WriteString(`.`)
			i++
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				b.WriteString(`\[`)
				i++
				continue
			}
			b.WriteString(class(pattern[i+1 : j]))
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			i++
		}
	}
	b.WriteString(`)\z`)
	return b.String()
}

// class renders the body of a bracket expression. Only '!' in first position
// negates; '-' keeps its range meaning.
func class(body string) string {
	var b strings.Builder
	b.WriteByte('[')
	if strings.HasPrefix(body, "!") {
		b.WriteByte('^')
		body = body[1:]
	}
	for i := 0; i < len(body); i++ {
		switch c := body[i]; c {
		case '\\', '[', ']', '^':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(']')
	return b.String()
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(translate(pattern))
}

// Match reports whether name matches pattern. Malformed patterns never match.
func Match(pattern, name string) bool {
	re, err := compile(pattern)
	return err == nil && re.MatchString(name)
}

// MatchAny reports whether name matches at least one pattern, and which.
func MatchAny(patterns []string, name string) (string, bool) {
	for _, p := range patterns {
		if Match(p, name) {
			return p, true
		}
	}
	return "", false
}

// Validate rejects patterns that cannot be compiled, such as a reversed
// range "[z-a]".
func Validate(pattern string) error {
	_, err := compile(pattern)
	return err
}
