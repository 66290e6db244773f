package nameutil

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var errUnterminatedQuote = errors.New("unterminated quote in command string")

// SplitCommand splits a command line into arguments the way a POSIX shell
// would for the simple cases: whitespace separates words, single quotes are
// literal, double quotes allow \" \\ and \$ escapes, and a backslash outside
// quotes escapes the next character. No expansion is performed.
func SplitCommand(input string) ([]string, error) {
	var (
		args    []string
		word    strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	runes := []rune(input)
	for i, r := range runes {
		switch {
		case escaped:
			word.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case quote == '"':
			switch {
			case r == '"':
				quote = 0
			case r == '\\' && i+1 < len(runes) && strings.ContainsRune(`"\$`, runes[i+1]):
				escaped = true
			default:
				word.WriteRune(r)
			}
		case r == '\\':
			inWord = true
			if i+1 < len(runes) {
				escaped = true
			} else {
				word.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				args = append(args, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, errUnterminatedQuote
	}
	if inWord {
		args = append(args, word.String())
	}
	return args, nil
}

var envAssignment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// SplitEnv separates leading NAME=value assignments, as in
// "DEBUG=1 node server.js", from the command and its arguments.
func SplitEnv(args []string) (env, argv []string) {
	i := 0
	for i < len(args) && envAssignment.MatchString(args[i]) {
		i++
	}
	return args[:i], args[i:]
}
