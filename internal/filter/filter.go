package filter

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Rule represents a single include or exclude filter rule.
type Rule struct {
	matcher *ignore.GitIgnore
	Pattern string
	Include bool // true=include, false=exclude
}

// Chain holds an ordered list of filter rules followed by gitignore-style
// ignore files. Paths are workspace-relative with no leading slash.
type Chain struct {
	rules   []Rule
	ignores []*ignore.GitIgnore
}

// NewChain creates an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// AddExclude adds an exclude rule for the given pattern.
func (c *Chain) AddExclude(pattern string) error {
	return c.add(pattern, false)
}

// AddInclude adds an include rule for the given pattern.
func (c *Chain) AddInclude(pattern string) error {
	return c.add(pattern, true)
}

func (c *Chain) add(pattern string, include bool) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return errEmptyPattern
	}
	c.rules = append(c.rules, Rule{
		matcher: ignore.CompileIgnoreLines(pattern),
		Pattern: pattern,
		Include: include,
	})
	return nil
}

// Empty reports whether the chain has no rules and no ignore files.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && len(c.ignores) == 0
}

// Match returns true if the path should be INCLUDED (not filtered out).
// Rules are walked in order and the first match wins. If no rule matches,
// the path is excluded when any ignore file matches it.
func (c *Chain) Match(relPath string, isDir bool) bool {
	p := strings.TrimPrefix(relPath, "/")
	if isDir {
		p += "/"
	}

	for _, rule := range c.rules {
		if rule.matcher.MatchesPath(p) {
			return rule.Include
		}
	}
	for _, gi := range c.ignores {
		if gi.MatchesPath(p) {
			return false
		}
	}
	return true
}

// Ignored is the inverse of Match. It satisfies the engine's ignore policy.
func (c *Chain) Ignored(relPath string, isDir bool) bool {
	return !c.Match(relPath, isDir)
}
