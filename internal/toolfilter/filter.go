// Package toolfilter narrows the tool list a server publishes to the names
// picked with --include-tools or --exclude-tools.
package toolfilter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// maxSuggestDistance bounds how far a typo may be from a real tool name
// before we stop suggesting it.
const maxSuggestDistance = 3

// NotFoundError reports a tool name the server does not publish.
type NotFoundError struct {
	Name       string
	Available  []string
	Suggestion string
}

func NewNotFoundError(name string, available []string) *NotFoundError {
	return &NotFoundError{Name: name, Available: available, Suggestion: Suggest(name, available)}
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tool '%s' not found on server. Available tools: %s", e.Name, strings.Join(e.Available, ", "))
	if e.Suggestion != "" {
		fmt.Fprintf(&b, ". Did you mean '%s'?", e.Suggestion)
	}
	return b.String()
}

// ParseToolList splits a comma separated flag value into names, dropping
// blanks and repeats.
func ParseToolList(csv string) []string {
	var names []string
	for _, part := range strings.Split(csv, ",") {
		name := strings.TrimSpace(part)
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// Select keeps the tools named in include, or drops those named in exclude,
// preserving the server's order. Every included name must exist. Excluding
// everything is an error since nothing would be left to probe.
func Select[T any](tools []T, nameOf func(T) string, include, exclude []string) ([]T, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return nil, errors.New("--include-tools and --exclude-tools cannot be used together")
	}
	if len(include) == 0 && len(exclude) == 0 {
		return tools, nil
	}

	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = nameOf(t)
	}
	for _, want := range include {
		if !slices.Contains(names, want) {
			return nil, NewNotFoundError(want, names)
		}
	}

	var kept []T
	for i, t := range tools {
		keep := !slices.Contains(exclude, names[i])
		if len(include) > 0 {
			keep = slices.Contains(include, names[i])
		}
		if keep {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("all tools excluded, nothing to probe")
	}
	return kept, nil
}

// Suggest returns the available name closest to name, or "" when none is
// within maxSuggestDistance edits.
func Suggest(name string, available []string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, candidate := range available {
		if d := editDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b in runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			diag, row[j] = row[j], min(row[j]+1, row[j-1]+1, diag+cost)
		}
	}
	return row[len(rb)]
}
