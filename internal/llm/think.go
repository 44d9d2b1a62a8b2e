package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkFilter removes <think>...</think> spans from a token stream. Tags may
// be split across tokens, so a possible tag prefix is held back until the
// next Push or Flush decides it.
type ThinkFilter struct {
	inside bool
	held   string
}

// Push feeds one token and returns the visible text it releases.
func (f *ThinkFilter) Push(tok string) string {
	s := f.held + tok
	f.held = ""
	var out strings.Builder
	for s != "" {
		tag := thinkOpen
		if f.inside {
			tag = thinkClose
		}
		if i := strings.Index(s, tag); i >= 0 {
			if !f.inside {
				out.WriteString(s[:i])
			}
			s = s[i+len(tag):]
			f.inside = !f.inside
			continue
		}
		keep := partialSuffix(s, tag)
		if !f.inside {
			out.WriteString(s[:len(s)-keep])
		}
		f.held = s[len(s)-keep:]
		break
	}
	return out.String()
}

// Flush returns text held back at the end of the stream. An unterminated
// think span stays hidden.
func (f *ThinkFilter) Flush() string {
	s := f.held
	f.held = ""
	if f.inside {
		return ""
	}
	return s
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialSuffix(s, tag string) int {
	n := len(tag) - 1
	if n > len(s) {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
