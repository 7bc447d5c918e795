// Package filter evaluates the per-tree include/exclude pattern stack
// (spec §6) that the command surface collects from repeated -e/-I flags
// and .hsyncignore files. It keeps the teacher's internal/ignore layered
// source shape (explicit patterns, then an upward ignore-file search) but
// compiles patterns with bmatcuk/doublestar instead of a hand-rolled glob
// engine.
package filter

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ambrevar/hsync/internal/config"
	"github.com/ambrevar/hsync/internal/logger"
)

// ignoreFileName is hsync's own ignore-file convention, searched upward
// from the tree root the same way the teacher searches for .mtcignore.
const ignoreFileName = ".hsyncignore"

// Predicate decides whether a relative path is excluded.
type Predicate interface {
	Excluded(relPath string, isDir bool) bool
}

type rule struct {
	exclude bool
	dirOnly bool
	pattern string
}

// stack evaluates rules in order; the last matching rule wins, and an
// unmatched path is included (spec §6).
type stack struct {
	rules []rule
}

// New compiles an include/exclude predicate from explicit rules plus any
// .hsyncignore files found by walking up from root.
func New(rules []config.PatternRule, root string) (Predicate, error) {
	all := make([]config.PatternRule, len(rules))
	copy(all, rules)

	found, err := findIgnoreFiles(root)
	if err != nil {
		return nil, err
	}
	all = append(all, found...)

	compiled := make([]rule, 0, len(all))
	for _, r := range all {
		pat := r.Pattern
		dirOnly := strings.HasSuffix(pat, "/")
		pat = strings.TrimSuffix(pat, "/")
		if _, err := doublestar.Match(pat, "probe"); err != nil {
			return nil, err
		}
		compiled = append(compiled, rule{exclude: r.Exclude, dirOnly: dirOnly, pattern: pat})
	}
	return &stack{rules: compiled}, nil
}

func (s *stack) Excluded(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	excluded := false
	for _, r := range s.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if matchAnySuffix(r.pattern, relPath) {
			excluded = r.exclude
		}
	}
	return excluded
}

// matchAnySuffix matches pattern against the full relative path and, for
// basename-style patterns (no slash), against the basename too, so
// "node_modules" excludes it at any depth like a .gitignore pattern would.
func matchAnySuffix(pattern, relPath string) bool {
	if ok, _ := doublestar.Match(pattern, relPath); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		base := relPath
		if i := strings.LastIndexByte(relPath, '/'); i >= 0 {
			base = relPath[i+1:]
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match("**/"+pattern, relPath); ok {
			return true
		}
	}
	return false
}

// findIgnoreFiles loads patterns from .hsyncignore starting at root and
// walking up to the filesystem root, mirroring the teacher's
// FindIgnoreFiles search (patterns from directories closer to root take
// precedence, applied last so they can override).
func findIgnoreFiles(root string) ([]config.PatternRule, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var collected []config.PatternRule
	current := absRoot
	visited := make(map[string]bool)
	for {
		if visited[current] {
			break
		}
		visited[current] = true

		rules, err := loadIgnoreFile(current)
		if err != nil {
			return nil, err
		}
		collected = append(rules, collected...)

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return collected, nil
}

func loadIgnoreFile(dir string) ([]config.PatternRule, error) {
	path := filepath.Join(dir, ignoreFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rules []config.PatternRule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		excl := true
		if strings.HasPrefix(line, "!") {
			excl = false
			line = strings.TrimPrefix(line, "!")
		}
		rules = append(rules, config.PatternRule{Exclude: excl, Pattern: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debug("loaded ignore file", "path", path, "rules", len(rules))
	return rules, nil
}

// noOp never excludes anything; used when no rules are configured.
type noOp struct{}

func (noOp) Excluded(string, bool) bool { return false }

// NoOp returns a predicate that excludes nothing.
func NoOp() Predicate { return noOp{} }
