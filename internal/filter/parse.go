package filter

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var errEmptyPattern = errors.New("empty pattern")

// LoadFile reads filter rules from a file and adds them to the chain.
// Format:
//   - pattern  → exclude
//   + pattern  → include
//   # comment  → skip
//   blank line → skip
//   no prefix  → exclude
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		include := false
		pattern := line

		if strings.HasPrefix(line, "+ ") {
			include = true
			pattern = line[2:]
		} else if strings.HasPrefix(line, "- ") {
			pattern = line[2:]
		}

		if err := c.add(pattern, include); err != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, lineNum, err)
		}
	}

	return scanner.Err()
}

// LoadIgnoreFile adds a .gitignore-syntax file to the chain. Negated
// patterns inside the file behave as they do in git.
func (c *Chain) LoadIgnoreFile(path string) error {
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return fmt.Errorf("load ignore file: %w", err)
	}
	c.ignores = append(c.ignores, gi)
	return nil
}

// AddIgnoreLines adds gitignore-syntax lines as one ignore matcher.
func (c *Chain) AddIgnoreLines(lines ...string) {
	if len(lines) == 0 {
		return
	}
	c.ignores = append(c.ignores, ignore.CompileIgnoreLines(lines...))
}
