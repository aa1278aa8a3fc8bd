// Package gitignore decides which workspace paths git ignores, so the
// watcher can skip build output and other files that never get indexed.
//
// Supported syntax follows https://git-scm.com/docs/gitignore: comments,
// negation, directory-only patterns, anchoring, *, ?, ** and character
// classes. Patterns from nested .gitignore files apply below their
// directory only.
package gitignore

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// FileName is the per-directory ignore file.
const FileName = ".gitignore"

type rule struct {
	re       *regexp.Regexp
	base     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// Matcher is a compiled set of ignore rules. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

// New returns an empty Matcher that ignores nothing.
func New() *Matcher {
	return &Matcher{}
}

// Load compiles every .gitignore under root. skipDir, when set, prunes
// directories by slash-separated relative path; .git is always pruned.
// Unreadable directories are skipped.
func Load(root string, skipDir func(rel string) bool) (*Matcher, error) {
	m := New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" || (rel != "." && skipDir != nil && skipDir(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != FileName {
			return nil
		}
		base := filepath.ToSlash(filepath.Dir(rel))
		if base == "." {
			base = ""
		}
		return m.AddFile(path, base)
	})
	if err != nil {
		return nil, fmt.Errorf("load gitignore files: %w", err)
	}
	return m, nil
}

// AddFile adds every pattern of the ignore file at path, scoped to base.
func (m *Matcher) AddFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.Add(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// Add compiles one ignore file line. base is the slash-separated directory
// holding the file, "" for the workspace root. Blank lines, comments and
// malformed patterns are skipped.
func (m *Matcher) Add(line, base string) {
	r, ok := parseRule(line, base)
	if !ok {
		return
	}
	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

func parseRule(line, base string) (rule, bool) {
	line = strings.TrimSuffix(line, "\r")
	p := strings.TrimRight(line, " ")
	if strings.HasSuffix(p, `\`) && len(p) < len(line) {
		p += " "
	}
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false
	}

	r := rule{base: strings.Trim(base, "/")}
	switch {
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	case strings.HasPrefix(p, `\!`), strings.HasPrefix(p, `\#`):
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimRight(p, "/")
	}
	// A slash anywhere but the end anchors the pattern to base.
	r.anchored = strings.Contains(p, "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return rule{}, false
	}

	re, err := regexp.Compile("^" + translate(p) + "$")
	if err != nil {
		return rule{}, false
	}
	r.re = re
	return r, true
}

// translate turns a glob into a regular expression body.
func translate(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if strings.HasPrefix(glob[i:], "**") {
				switch {
				case strings.HasPrefix(glob[i:], "**/"):
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				case i+2 == len(glob):
					b.WriteString(".*")
					i++
					continue
				}
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(glob) {
				i++
				c = glob[i]
			}
			b.WriteString(regexp.QuoteMeta(string(c)))
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

// Match reports whether rel, a workspace-relative path, is ignored. The
// last matching rule wins, so negations can re-include a path.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// matches checks rel and each of its parent directories, since ignoring a
// directory ignores everything below it.
func (r rule) matches(rel string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(rel, r.base+"/") {
			return false
		}
		rel = rel[len(r.base)+1:]
	}

	parts := strings.Split(rel, "/")
	last := len(parts) - 1
	for i := range parts {
		candidate := parts[i]
		if r.anchored {
			candidate = strings.Join(parts[:i+1], "/")
		}
		if !r.re.MatchString(candidate) {
			continue
		}
		if i < last || !r.dirOnly || isDir {
			return true
		}
	}
	return false
}
