package profile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// registryScan is what a pass over profiles.ini found.
type registryScan struct {
	maxIndex    int
	found       bool
	badHeaders  []string
	endsNewline bool
}

// scanRegistry looks for [ProfileN] headers and a Name= line equal to name.
// The scan stops at the first match. Lines may be as long as data itself;
// a scan that cannot finish returns an error instead of a partial result.
func scanRegistry(data []byte, name string) (registryScan, error) {
	res := registryScan{
		maxIndex:    -1,
		endsNewline: len(data) == 0 || bytes.HasSuffix(data, []byte("\n")),
	}
	want := "Name=" + name

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), max(len(data)+1, bufio.MaxScanTokenSize))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "[Profile") && strings.HasSuffix(line, "]"):
			n, err := strconv.Atoi(line[len("[Profile") : len(line)-1])
			if err != nil {
				res.badHeaders = append(res.badHeaders, line)
				continue
			}
			if n > res.maxIndex {
				res.maxIndex = n
			}
		case line == want:
			res.found = true
			return res, nil
		}
	}
	if err := sc.Err(); err != nil {
		return registryScan{}, err
	}
	return res, nil
}

// registrySection renders the section appended for a new profile.
func registrySection(index int, name, relPath string, leadingNewline bool) string {
	var b strings.Builder
	if leadingNewline {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n[Profile%d]\nName=%s\nIsRelative=1\nPath=%s\n", index, name, relPath)
	return b.String()
}

// relativePath returns profileDir relative to the registry's directory,
// slash separated as the registry format expects.
func relativePath(registryPath, profileDir string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(registryPath), profileDir)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// appendRegistry writes s to the end of the registry in a single write.
func appendRegistry(path, s string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(s); err != nil {
		_ = f.Close() //nolint:errcheck // the write error is the one worth reporting
		return err
	}
	return f.Close()
}
