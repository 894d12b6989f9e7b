package impact

import (
	"regexp"
	"strings"
)

// DiffHunk represents a single hunk in a diff.
type DiffHunk struct {
	// Header is the hunk header (e.g., "@@ -1,3 +1,4 @@").
	Header string

	// Lines are the diff lines in this hunk, prefix included.
	Lines []string
}

// FileDiff represents the diff for a single file.
type FileDiff struct {
	// Path is the repo-relative path on the new side.
	Path string

	// Hunks contains the hunks that survived the importance filter.
	Hunks []DiffHunk
}

var (
	funcDefRe = regexp.MustCompile(`^\s*func\s+([A-Za-z_]\w*)\s*\(`)
	callRe    = regexp.MustCompile(`[A-Za-z_][\w.]*\s*\(`)
)

// ParseDiff splits unified diff output into per-file hunks, keeping
// only files with at least one important hunk.
func ParseDiff(output string) []FileDiff {
	var files []FileDiff
	var current *FileDiff

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			if current != nil {
				files = append(files, *current)
			}
			current = &FileDiff{}
		case strings.HasPrefix(line, "+++ b/"):
			if current != nil {
				current.Path = strings.TrimSpace(strings.TrimPrefix(line, "+++ b/"))
			}
		case strings.HasPrefix(line, "@@"):
			if current != nil {
				current.Hunks = append(current.Hunks, DiffHunk{Header: line})
			}
		default:
			if current != nil && len(current.Hunks) > 0 {
				h := &current.Hunks[len(current.Hunks)-1]
				h.Lines = append(h.Lines, line)
			}
		}
	}
	if current != nil {
		files = append(files, *current)
	}

	var filtered []FileDiff
	for _, f := range files {
		var kept []DiffHunk
		for _, h := range f.Hunks {
			if ImportantHunk(h.Lines) {
				kept = append(kept, h)
			}
		}
		if len(kept) > 0 && f.Path != "" {
			f.Hunks = kept
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// ImportantHunk decides whether a hunk represents a behavioral change.
// Pure signature reshuffles, import churn, and comment-only additions
// do not count.
func ImportantHunk(lines []string) bool {
	var added, removed []string
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++") || strings.HasPrefix(l, "---"):
		case strings.HasPrefix(l, "+"):
			added = append(added, l[1:])
		case strings.HasPrefix(l, "-"):
			removed = append(removed, l[1:])
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return false
	}

	if len(added)+len(removed) == 1 {
		line := ""
		if len(added) == 1 {
			line = added[0]
		} else {
			line = removed[0]
		}
		if funcDefRe.MatchString(line) {
			return false
		}
		return callRe.MatchString(line)
	}

	// Count removed/added signature pairs for the same function that
	// only move parameters around.
	trivialPairs, defPairsChecked := 0, 0
	for _, r := range removed {
		rName := defName(r)
		if rName == "" {
			continue
		}
		for _, a := range added {
			if defName(a) != rName {
				continue
			}
			defPairsChecked++
			if defChangeIsTrivial(r, a) {
				trivialPairs++
			}
		}
	}

	var nonDefAdded []string
	for _, a := range added {
		line := strings.TrimSpace(a)
		if line == "" || funcDefRe.MatchString(line) {
			continue
		}
		if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "import(") {
			continue
		}
		if strings.HasPrefix(line, "//") {
			continue
		}
		nonDefAdded = append(nonDefAdded, line)
	}

	if defPairsChecked > 0 && defPairsChecked == trivialPairs && len(nonDefAdded) == 0 {
		return false
	}
	return true
}

func defName(line string) string {
	m := funcDefRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// defChangeIsTrivial reports whether two signature lines for the same
// function differ only in parameter types or spacing.
func defChangeIsTrivial(removed, added string) bool {
	nr, okR := normalizeDefLine(removed)
	na, okA := normalizeDefLine(added)
	if !okR || !okA {
		return false
	}
	if nr == na {
		return true
	}
	return similarity(nr, na) >= 0.85
}

// normalizeDefLine reduces a signature to "func name(p1, p2)" with
// parameter types stripped.
func normalizeDefLine(line string) (string, bool) {
	name := defName(line)
	if name == "" {
		return "", false
	}
	open := strings.Index(line, "(")
	if open < 0 {
		return "", false
	}
	depth, end := 0, -1
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return "", false
	}

	var params []string
	for _, part := range splitTopLevel(line[open+1 : end]) {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			params = append(params, fields[0])
		}
	}
	return "func " + name + "(" + strings.Join(params, ", ") + ")", true
}

// splitTopLevel splits on commas outside any bracket nesting.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

// similarity is the ratio of the longest common subsequence to the
// average length, in [0, 1].
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
