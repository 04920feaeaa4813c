package analyzer

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory suppression file.
const IgnoreFileName = ".mongolensignore"

// IgnoreRule matches findings to suppress.
type IgnoreRule struct {
	Type       string // finding type or "*"
	Database   string // database name, "*" or trailing-* glob
	Collection string // collection name, "*" or trailing-* glob
	Field      string // dotted field path, "*"/empty for any
}

// IgnoreList holds parsed ignore rules.
type IgnoreList struct {
	Rules []IgnoreRule
}

// LoadIgnoreFile reads .mongolensignore from dir. A missing file is an empty list.
func LoadIgnoreFile(dir string) (IgnoreList, error) {
	path := filepath.Join(dir, IgnoreFileName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return IgnoreList{}, nil
		}
		return IgnoreList{}, fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rules []IgnoreRule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rule, ok := ParseIgnoreRule(line); ok {
			rules = append(rules, rule)
		}
	}
	if err := sc.Err(); err != nil {
		return IgnoreList{}, fmt.Errorf("read ignore file: %w", err)
	}
	return IgnoreList{Rules: rules}, nil
}

// ParseIgnoreRule parses one rule line of the form TYPE db.collection[.field].
// The field part may itself contain dots:
//
//	UNBOUNDED_ARRAY shop.orders.items
//	* app.audit_logs
//	LOW_CARDINALITY_FIELD app.users.profile.status
func ParseIgnoreRule(line string) (IgnoreRule, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return IgnoreRule{}, false
	}

	rule := IgnoreRule{Type: parts[0]}
	segments := strings.SplitN(parts[1], ".", 3)
	switch len(segments) {
	case 1:
		rule.Database = "*"
		rule.Collection = segments[0]
	case 2:
		rule.Database = segments[0]
		rule.Collection = segments[1]
	case 3:
		rule.Database = segments[0]
		rule.Collection = segments[1]
		rule.Field = segments[2]
	}
	return rule, true
}

// Matches reports whether the finding is suppressed by this rule.
func (r IgnoreRule) Matches(f Finding) bool {
	if r.Type != "*" && r.Type != string(f.Type) {
		return false
	}
	if r.Database != "" && !matchGlob(r.Database, f.Database) {
		return false
	}
	if !matchGlob(r.Collection, f.Collection) {
		return false
	}
	if r.Field != "" && !matchGlob(r.Field, f.Field) {
		return false
	}
	return true
}

// Filter removes findings that match any rule and returns the suppressed count.
func (il IgnoreList) Filter(findings []Finding) ([]Finding, int) {
	if len(il.Rules) == 0 {
		return findings, 0
	}

	filtered := make([]Finding, 0, len(findings))
	suppressed := 0
	for _, f := range findings {
		if il.matches(f) {
			suppressed++
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered, suppressed
}

func (il IgnoreList) matches(f Finding) bool {
	for _, r := range il.Rules {
		if r.Matches(f) {
			return true
		}
	}
	return false
}

// matchGlob supports "*" and a single trailing "*".
func matchGlob(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}
