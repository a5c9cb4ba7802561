// Package targets reads the list of target directories a push fans out to.
package targets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads the target list at path. A missing file is returned as an
// error wrapping fs.ErrNotExist.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	list, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file %s: %w", path, err)
	}
	return list, nil
}

// Parse returns one entry per non-blank line with surrounding whitespace
// trimmed, in file order. Lines starting with "#" are comments.
func Parse(r io.Reader) ([]string, error) {
	list := make([]string, 0)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
