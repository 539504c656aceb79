package nl2sql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSQL reports model output with no extractable SQL statement.
var ErrNoSQL = errors.New("no SQL statement found in model output")

var leadingKeywords = map[string]struct{}{
	"select":   {},
	"with":     {},
	"insert":   {},
	"update":   {},
	"delete":   {},
	"drop":     {},
	"create":   {},
	"alter":    {},
	"truncate": {},
	"explain":  {},
	"show":     {},
	"describe": {},
	"values":   {},
	"merge":    {},
	"grant":    {},
	"revoke":   {},
	"table":    {},
}

// ExtractSQL reduces free-form model output to a single SQL statement:
// trim, unwrap one fenced code block (optionally tagged), cut at the first
// semicolon outside quotes, and require a recognizable leading keyword.
// Write verbs pass here; the safety policy screens them before execution.
// Already-clean input passes through unchanged.
func ExtractSQL(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: output is empty", ErrNoSQL)
	}

	text = unwrapFence(text)
	text = firstStatement(text)
	if text == "" {
		return "", fmt.Errorf("%w: output is empty after extraction", ErrNoSQL)
	}
	if keyword := leadingKeyword(text); keyword == "" {
		return "", fmt.Errorf("%w: output does not start with a SQL keyword", ErrNoSQL)
	}
	return text, nil
}

// unwrapFence keeps the interior of the first ``` code block, dropping an
// optional language tag on the opening fence line. Text without a fence is
// returned unchanged.
func unwrapFence(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return text
	}
	rest := text[start+3:]
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	if newline := strings.IndexByte(rest, '\n'); newline != -1 && isFenceTag(rest[:newline]) {
		rest = rest[newline+1:]
	}
	return strings.TrimSpace(rest)
}

func isFenceTag(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "sql", "postgresql", "postgres", "psql":
		return true
	}
	return false
}

// firstStatement cuts at the first semicolon outside quoted literals and
// identifiers, dropping the semicolon and anything after it.
func firstStatement(text string) string {
	var inSingle, inDouble bool
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case ';':
			if !inSingle && !inDouble {
				return strings.TrimSpace(text[:i])
			}
		}
	}
	return strings.TrimSpace(text)
}

// leadingKeyword returns the first word lowercased when it is a recognized
// SQL verb, empty otherwise.
func leadingKeyword(text string) string {
	end := 0
	for end < len(text) && isLetter(text[end]) {
		end++
	}
	word := strings.ToLower(text[:end])
	if _, ok := leadingKeywords[word]; !ok {
		return ""
	}
	return word
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
