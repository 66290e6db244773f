package schema

import (
	"strings"
	"unicode"
)

// ToFlagName converts a property name such as "issueId", "getHTTPResponse"
// or "page_size" into its kebab-case alias ("issue-id", "get-http-response",
// "page-size").
func ToFlagName(propertyName string) string {
	runes := []rune(propertyName)
	var b strings.Builder
	b.Grow(len(propertyName) + 4)
	for i, r := range runes {
		if r == '_' {
			b.WriteByte('-')
			continue
		}
		if unicode.IsUpper(r) && startsWord(runes, i) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// startsWord reports whether the upper-case rune at i begins a new word:
// it follows a lower-case letter ("issueId"), or it ends an acronym and is
// followed by a lower-case letter ("HTMLParser").
func startsWord(runes []rune, i int) bool {
	if i == 0 {
		return false
	}
	prev := runes[i-1]
	if unicode.IsLower(prev) {
		return true
	}
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
