package fallback

import (
	"fmt"
	"strings"
)

// mutationKeywords are rejected anywhere in a generated statement. The
// model only ever needs to read; any of these means it went off script.
var mutationKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "attach", "pragma", "vacuum",
	"replace", "merge",
}

// ValidateReadOnly rejects generated SQL that is not a single plain
// SELECT statement. Model output is untrusted input, not a command.
func ValidateReadOnly(query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return fmt.Errorf("empty statement")
	}

	// One statement only. A single trailing semicolon is tolerated.
	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}

	lower := strings.ToLower(q)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("statement must start with SELECT")
	}

	for _, kw := range mutationKeywords {
		if containsWord(lower, kw) {
			return fmt.Errorf("statement contains forbidden keyword %q", kw)
		}
	}
	return nil
}

// containsWord matches kw on word boundaries so column names like
// "created_at" do not trip the "create" check.
func containsWord(s, kw string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordChar(s[start-1])
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
