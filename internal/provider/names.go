package provider

import (
	"regexp"
	"strings"
	"unicode"
)

var matchSeparators = []string{" vs. ", " vs ", " v ", " - "}

// SplitMatchName splits "Home v Away" style event names. ok is false when no
// separator is found or either side is empty.
func SplitMatchName(name string) (home, away string, ok bool) {
	for _, sep := range matchSeparators {
		if i := strings.Index(name, sep); i >= 0 {
			home = strings.TrimSpace(name[:i])
			away = strings.TrimSpace(name[i+len(sep):])
			if home != "" && away != "" {
				return home, away, true
			}
		}
	}
	return "", "", false
}

var willWinRe = regexp.MustCompile(`(?i)^\s*will\s+(.+?)\s+win\b`)

// TeamFromQuestion extracts the team from a "Will <team> win ..." question.
func TeamFromQuestion(question string) (string, bool) {
	m := willWinRe.FindStringSubmatch(question)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// MentionsWin reports whether a question is framed as a team winning.
func MentionsWin(question string) bool {
	return strings.Contains(strings.ToLower(question), "win")
}

// IsDraw reports whether an exchange selection names the draw.
func IsDraw(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return n == "draw" || n == "the draw" || n == "tie"
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimFunc(a, unicode.IsSpace), strings.TrimFunc(b, unicode.IsSpace))
}
