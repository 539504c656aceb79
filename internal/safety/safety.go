// Package safety screens generated SQL before it reaches the database.
//
// The screen is a keyword heuristic, not a parser: it rejects obvious write
// statements fast but cannot catch keywords hidden in comments or string
// literals. The genuine enforcement boundary is a read-only database
// credential; deployments must not rely on this screen alone.
package safety

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafe reports a statement rejected by the read-only policy.
var ErrUnsafe = errors.New("statement violates read-only policy")

// DefaultDenylist holds the write and DDL keywords rejected under the
// read-only policy.
var DefaultDenylist = []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "CREATE"}

var defaultDenyPattern = denyPattern(DefaultDenylist)

var readKeywords = map[string]struct{}{
	"select": {},
	"with":   {},
}

// ViolationError carries the keyword that triggered the rejection so
// callers can surface it without string matching.
type ViolationError struct {
	Keyword string
	Reason  string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsafe.Error(), e.Reason)
}

func (e *ViolationError) Is(target error) bool {
	return target == ErrUnsafe
}

type Policy struct {
	ReadOnly bool
	Denylist []string
}

// Check validates statement against the policy. Under read-only mode the
// first keyword must be SELECT or WITH and no denylisted keyword may appear
// anywhere, matched case-insensitively on word boundaries (created_at does
// not match CREATE). A permissive policy accepts everything.
func (p Policy) Check(statement string) error {
	if !p.ReadOnly {
		return nil
	}
	trimmed := strings.TrimSpace(statement)
	if trimmed == "" {
		return &ViolationError{Reason: "statement is empty"}
	}

	first := firstKeyword(trimmed)
	if _, ok := readKeywords[strings.ToLower(first)]; !ok {
		return &ViolationError{
			Keyword: strings.ToUpper(first),
			Reason:  fmt.Sprintf("statement must start with SELECT or WITH, got %q", strings.ToUpper(first)),
		}
	}

	pattern := defaultDenyPattern
	if custom := denyPattern(p.Denylist); custom != nil {
		pattern = custom
	}
	if match := pattern.FindString(trimmed); match != "" {
		return &ViolationError{
			Keyword: strings.ToUpper(match),
			Reason:  fmt.Sprintf("statement contains denylisted keyword %q", strings.ToUpper(match)),
		}
	}
	return nil
}

func firstKeyword(statement string) string {
	end := 0
	for end < len(statement) && isWordByte(statement[end]) {
		end++
	}
	return statement[:end]
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

// denyPattern compiles a word-boundary alternation over keywords, nil when
// no usable keyword remains.
func denyPattern(keywords []string) *regexp.Regexp {
	escaped := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(strings.ToLower(keyword)))
	}
	if len(escaped) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}
