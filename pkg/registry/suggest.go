package registry

import (
	"sort"
	"strings"
)

const maxSuggestions = 3

// closeMatches ranks candidate IDs by similarity to key. When the
// publisher/namespace prefix of key exists among the candidates,
// suggestions stay scoped to that namespace with a looser cutoff;
// otherwise a global match with a tighter cutoff applies.
func closeMatches(key string, candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}

	parts := strings.Split(key, "/")
	if len(parts) == 3 {
		prefix := parts[0] + "/" + parts[1] + "/"
		var scoped []string
		for _, c := range candidates {
			if strings.HasPrefix(c, prefix) {
				scoped = append(scoped, c)
			}
		}
		if len(scoped) > 0 {
			return rankMatches(key, scoped, 0.5)
		}
	}
	return rankMatches(key, candidates, 0.7)
}

func rankMatches(key string, candidates []string, cutoff float64) []string {
	type scored struct {
		id    string
		ratio float64
	}
	var matches []scored
	for _, c := range candidates {
		if r := similarity(key, c); r >= cutoff {
			matches = append(matches, scored{c, r})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].ratio != matches[j].ratio {
			return matches[i].ratio > matches[j].ratio
		}
		return matches[i].id < matches[j].id
	})
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.id
	}
	return out
}

// similarity returns 1 - editDistance/maxLen, a cheap ratio that is
// good enough for "did you mean" hints.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(editDistance(a, b))/float64(maxLen)
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
